package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "trade.vote_window_seconds")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLeague()...)
	errors = append(errors, c.validateTrade()...)
	errors = append(errors, c.validateSigning()...)
	errors = append(errors, c.validateRoleSync()...)
	errors = append(errors, c.validateGateway()...)
	errors = append(errors, c.validateRateLimit()...)
	errors = append(errors, c.validateKafka()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func positive(field string, value int) []ValidationError {
	if value > 0 {
		return nil
	}
	return []ValidationError{{Field: field, Value: value, Message: "must be positive"}}
}

func (c *Config) validateLeague() []ValidationError {
	var errors []ValidationError

	if c.League.DefaultRosterCap < 0 {
		errors = append(errors, ValidationError{
			Field:   "league.default_roster_cap",
			Value:   c.League.DefaultRosterCap,
			Message: "must be non-negative",
		})
	}

	if strings.TrimSpace(c.League.CaptainRole) == "" {
		errors = append(errors, ValidationError{
			Field:   "league.captain_role",
			Value:   c.League.CaptainRole,
			Message: "must not be empty",
		})
	}

	for i, pattern := range c.League.AdminRoles {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("league.admin_roles[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	if c.League.CommandPrefix == "" || strings.ContainsAny(c.League.CommandPrefix, " \t\n") {
		errors = append(errors, ValidationError{
			Field:   "league.command_prefix",
			Value:   c.League.CommandPrefix,
			Message: "must be non-empty and contain no whitespace",
		})
	}

	return errors
}

func (c *Config) validateTrade() []ValidationError {
	var errors []ValidationError
	errors = append(errors, positive("trade.group_timeout_seconds", c.Trade.GroupTimeoutSeconds)...)
	errors = append(errors, positive("trade.consent_timeout_seconds", c.Trade.ConsentTimeoutSeconds)...)
	errors = append(errors, positive("trade.vote_window_seconds", c.Trade.VoteWindowSeconds)...)
	return errors
}

func (c *Config) validateSigning() []ValidationError {
	return positive("signing.consent_timeout_seconds", c.Signing.ConsentTimeoutSeconds)
}

func (c *Config) validateRoleSync() []ValidationError {
	if !c.RoleSync.Enabled {
		return nil
	}
	return positive("rolesync.interval_seconds", c.RoleSync.IntervalSeconds)
}

func (c *Config) validateGateway() []ValidationError {
	var errors []ValidationError

	if c.Gateway.ListenAddr == "" {
		errors = append(errors, ValidationError{
			Field:   "gateway.listen_addr",
			Value:   c.Gateway.ListenAddr,
			Message: "must not be empty",
		})
	}

	// An empty secret is allowed here so that config commands work before
	// one is set; serve and token refuse to start without it.
	const minSecretLen = 16
	if c.Gateway.JWTSecret != "" && len(c.Gateway.JWTSecret) < minSecretLen {
		errors = append(errors, ValidationError{
			Field:   "gateway.jwt_secret",
			Value:   "<redacted>",
			Message: fmt.Sprintf("must be at least %d characters", minSecretLen),
		})
	}

	errors = append(errors, positive("gateway.token_ttl_hours", c.Gateway.TokenTTLHours)...)

	if c.Gateway.BotID == "" {
		errors = append(errors, ValidationError{
			Field:   "gateway.bot_id",
			Value:   c.Gateway.BotID,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateRateLimit() []ValidationError {
	if !c.RateLimit.Enabled {
		return nil
	}
	var errors []ValidationError
	errors = append(errors, positive("ratelimit.commands", c.RateLimit.Commands)...)
	errors = append(errors, positive("ratelimit.window_seconds", c.RateLimit.WindowSeconds)...)
	if c.RateLimit.RedisDB < 0 {
		errors = append(errors, ValidationError{
			Field:   "ratelimit.redis_db",
			Value:   c.RateLimit.RedisDB,
			Message: "must be non-negative",
		})
	}
	return errors
}

func (c *Config) validateKafka() []ValidationError {
	if len(c.Kafka.Brokers) == 0 {
		return nil
	}
	var errors []ValidationError
	if c.Kafka.Topic == "" {
		errors = append(errors, ValidationError{
			Field:   "kafka.topic",
			Value:   c.Kafka.Topic,
			Message: "must be set when brokers are configured",
		})
	}
	for i, b := range c.Kafka.Brokers {
		if !strings.Contains(b, ":") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("kafka.brokers[%d]", i),
				Value:   b,
				Message: "must be host:port",
			})
		}
	}
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB <= 0 || c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("must be between 1 and %d", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
