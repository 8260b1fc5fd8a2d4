// Package config loads and validates the league bot configuration.
//
// Configuration comes from, in increasing precedence: built-in defaults
// ([Default]), a YAML file (see [ConfigFile]), a .env file in the working
// directory, and AAFLBOT_* environment variables. A running server watches
// the file and swaps a new snapshot into [Live] on every valid change;
// workflows read the snapshot once when they start.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete bot configuration
type Config struct {
	League    LeagueConfig    `mapstructure:"league" yaml:"league"`
	Trade     TradeConfig     `mapstructure:"trade" yaml:"trade"`
	Signing   SigningConfig   `mapstructure:"signing" yaml:"signing"`
	RoleSync  RoleSyncConfig  `mapstructure:"rolesync" yaml:"rolesync"`
	Gateway   GatewayConfig   `mapstructure:"gateway" yaml:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Kafka     KafkaConfig     `mapstructure:"kafka" yaml:"kafka"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// LeagueConfig holds league-wide rules and role names
type LeagueConfig struct {
	// DefaultRosterCap is the star cap given to newly created teams
	DefaultRosterCap int `mapstructure:"default_roster_cap" yaml:"default_roster_cap"`
	// CaptainRole is the chat role required to sign players
	CaptainRole string `mapstructure:"captain_role" yaml:"captain_role"`
	// AdminRoles are glob patterns (e.g. "League *") matched against a
	// member's roles to authorize administrative commands
	AdminRoles []string `mapstructure:"admin_roles" yaml:"admin_roles"`
	// CommandPrefix marks a chat message as a bot command
	CommandPrefix string `mapstructure:"command_prefix" yaml:"command_prefix"`
}

// TradeConfig controls the trade negotiation timeouts
type TradeConfig struct {
	// GroupTimeoutSeconds bounds each wait for group mentions
	GroupTimeoutSeconds int `mapstructure:"group_timeout_seconds" yaml:"group_timeout_seconds"`
	// ConsentTimeoutSeconds bounds the counterparty captain's decision
	ConsentTimeoutSeconds int `mapstructure:"consent_timeout_seconds" yaml:"consent_timeout_seconds"`
	// VoteWindowSeconds is how long the public poll stays open
	VoteWindowSeconds int `mapstructure:"vote_window_seconds" yaml:"vote_window_seconds"`
	// RevalidateCaptaincy re-checks the requester's captaincy after group B
	// is collected and again before the trade is applied
	RevalidateCaptaincy bool `mapstructure:"revalidate_captaincy" yaml:"revalidate_captaincy"`
}

// SigningConfig controls the signing flow
type SigningConfig struct {
	// ConsentTimeoutSeconds bounds the player's accept/decline decision
	ConsentTimeoutSeconds int `mapstructure:"consent_timeout_seconds" yaml:"consent_timeout_seconds"`
}

// RoleSyncConfig controls the periodic team role reconciliation
type RoleSyncConfig struct {
	Enabled         bool `mapstructure:"enabled" yaml:"enabled"`
	IntervalSeconds int  `mapstructure:"interval_seconds" yaml:"interval_seconds"`
}

// GatewayConfig controls the websocket chat gateway
type GatewayConfig struct {
	// ListenAddr is the HTTP listen address for /ws and /metrics
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
	// JWTSecret signs and verifies member tokens; required by serve and token
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	// TokenTTLHours is the lifetime of tokens issued by the token command
	TokenTTLHours int `mapstructure:"token_ttl_hours" yaml:"token_ttl_hours"`
	// BotID and BotName identify the bot as a message author
	BotID   string `mapstructure:"bot_id" yaml:"bot_id"`
	BotName string `mapstructure:"bot_name" yaml:"bot_name"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// RateLimitConfig controls per-user command rate limiting
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Commands is the number of commands allowed per window
	Commands      int `mapstructure:"commands" yaml:"commands"`
	WindowSeconds int `mapstructure:"window_seconds" yaml:"window_seconds"`
	// RedisAddr switches the limiter to Redis when set
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// KafkaConfig controls publishing of workflow outcomes
type KafkaConfig struct {
	// Brokers enables publishing when non-empty
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
	// Dir is the directory for aaflbot.log; empty logs to stderr
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB is the size at which the log file rotates
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		League: LeagueConfig{
			DefaultRosterCap: 10,
			CaptainRole:      "Franchise Owner",
			AdminRoles:       []string{"Admin*", "League Office"},
			CommandPrefix:    "/",
		},
		Trade: TradeConfig{
			GroupTimeoutSeconds:   60,
			ConsentTimeoutSeconds: 86400,
			VoteWindowSeconds:     20,
			RevalidateCaptaincy:   false,
		},
		Signing: SigningConfig{
			ConsentTimeoutSeconds: 86400,
		},
		RoleSync: RoleSyncConfig{
			Enabled:         true,
			IntervalSeconds: 60,
		},
		Gateway: GatewayConfig{
			ListenAddr:     ":8080",
			JWTSecret:      "",
			TokenTTLHours:  720,
			BotID:          "aaflbot",
			BotName:        "AAFL Bot",
			AllowedOrigins: []string{},
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			Commands:      20,
			WindowSeconds: 60,
			KeyPrefix:     "aaflbot:ratelimit:",
		},
		Kafka: KafkaConfig{
			Brokers: []string{},
			Topic:   "aaflbot.league-events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Dir:        "",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// GroupTimeout returns the group mention wait as a time.Duration
func (c *TradeConfig) GroupTimeout() time.Duration {
	return time.Duration(c.GroupTimeoutSeconds) * time.Second
}

// ConsentTimeout returns the captain consent wait as a time.Duration
func (c *TradeConfig) ConsentTimeout() time.Duration {
	return time.Duration(c.ConsentTimeoutSeconds) * time.Second
}

// VoteWindow returns the poll window as a time.Duration
func (c *TradeConfig) VoteWindow() time.Duration {
	return time.Duration(c.VoteWindowSeconds) * time.Second
}

// ConsentTimeout returns the player consent wait as a time.Duration
func (c *SigningConfig) ConsentTimeout() time.Duration {
	return time.Duration(c.ConsentTimeoutSeconds) * time.Second
}

// Interval returns the role sync period as a time.Duration
func (c *RoleSyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// TokenTTL returns the token lifetime as a time.Duration
func (c *GatewayConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Window returns the rate limit window as a time.Duration
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("league.default_roster_cap", defaults.League.DefaultRosterCap)
	viper.SetDefault("league.captain_role", defaults.League.CaptainRole)
	viper.SetDefault("league.admin_roles", defaults.League.AdminRoles)
	viper.SetDefault("league.command_prefix", defaults.League.CommandPrefix)

	viper.SetDefault("trade.group_timeout_seconds", defaults.Trade.GroupTimeoutSeconds)
	viper.SetDefault("trade.consent_timeout_seconds", defaults.Trade.ConsentTimeoutSeconds)
	viper.SetDefault("trade.vote_window_seconds", defaults.Trade.VoteWindowSeconds)
	viper.SetDefault("trade.revalidate_captaincy", defaults.Trade.RevalidateCaptaincy)

	viper.SetDefault("signing.consent_timeout_seconds", defaults.Signing.ConsentTimeoutSeconds)

	viper.SetDefault("rolesync.enabled", defaults.RoleSync.Enabled)
	viper.SetDefault("rolesync.interval_seconds", defaults.RoleSync.IntervalSeconds)

	viper.SetDefault("gateway.listen_addr", defaults.Gateway.ListenAddr)
	viper.SetDefault("gateway.jwt_secret", defaults.Gateway.JWTSecret)
	viper.SetDefault("gateway.token_ttl_hours", defaults.Gateway.TokenTTLHours)
	viper.SetDefault("gateway.bot_id", defaults.Gateway.BotID)
	viper.SetDefault("gateway.bot_name", defaults.Gateway.BotName)
	viper.SetDefault("gateway.allowed_origins", defaults.Gateway.AllowedOrigins)

	viper.SetDefault("ratelimit.enabled", defaults.RateLimit.Enabled)
	viper.SetDefault("ratelimit.commands", defaults.RateLimit.Commands)
	viper.SetDefault("ratelimit.window_seconds", defaults.RateLimit.WindowSeconds)
	viper.SetDefault("ratelimit.redis_addr", defaults.RateLimit.RedisAddr)
	viper.SetDefault("ratelimit.redis_password", defaults.RateLimit.RedisPassword)
	viper.SetDefault("ratelimit.redis_db", defaults.RateLimit.RedisDB)
	viper.SetDefault("ratelimit.key_prefix", defaults.RateLimit.KeyPrefix)

	viper.SetDefault("kafka.brokers", defaults.Kafka.Brokers)
	viper.SetDefault("kafka.topic", defaults.Kafka.Topic)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.path", defaults.Metrics.Path)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "aaflbot")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".aaflbot"
	}
	return filepath.Join(home, ".config", "aaflbot")
}

// ConfigFile returns the default config file path
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
