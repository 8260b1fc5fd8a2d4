package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "test.field", Value: 123, Message: "is invalid"},
		}
		expected := "test.field: is invalid (got: 123)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		wantField string
	}{
		{"negative roster cap", func(c *Config) { c.League.DefaultRosterCap = -1 }, "league.default_roster_cap"},
		{"empty captain role", func(c *Config) { c.League.CaptainRole = "  " }, "league.captain_role"},
		{"bad admin glob", func(c *Config) { c.League.AdminRoles = []string{"[Admin"} }, "league.admin_roles[0]"},
		{"prefix with space", func(c *Config) { c.League.CommandPrefix = "! " }, "league.command_prefix"},
		{"zero group timeout", func(c *Config) { c.Trade.GroupTimeoutSeconds = 0 }, "trade.group_timeout_seconds"},
		{"zero consent timeout", func(c *Config) { c.Trade.ConsentTimeoutSeconds = 0 }, "trade.consent_timeout_seconds"},
		{"negative vote window", func(c *Config) { c.Trade.VoteWindowSeconds = -5 }, "trade.vote_window_seconds"},
		{"zero signing timeout", func(c *Config) { c.Signing.ConsentTimeoutSeconds = 0 }, "signing.consent_timeout_seconds"},
		{"zero rolesync interval", func(c *Config) { c.RoleSync.IntervalSeconds = 0 }, "rolesync.interval_seconds"},
		{"empty listen addr", func(c *Config) { c.Gateway.ListenAddr = "" }, "gateway.listen_addr"},
		{"short jwt secret", func(c *Config) { c.Gateway.JWTSecret = "short" }, "gateway.jwt_secret"},
		{"empty bot id", func(c *Config) { c.Gateway.BotID = "" }, "gateway.bot_id"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Commands = 0 }, "ratelimit.commands"},
		{"negative redis db", func(c *Config) { c.RateLimit.RedisDB = -1 }, "ratelimit.redis_db"},
		{"kafka without topic", func(c *Config) {
			c.Kafka.Brokers = []string{"localhost:9092"}
			c.Kafka.Topic = ""
		}, "kafka.topic"},
		{"kafka broker without port", func(c *Config) { c.Kafka.Brokers = []string{"localhost"} }, "kafka.brokers[0]"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log size", func(c *Config) { c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			errs := cfg.Validate()
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected validation error on %s, got %v", tt.wantField, errs)
			}
		})
	}
}

func TestConfig_Validate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := Default()
	cfg.RoleSync.Enabled = false
	cfg.RoleSync.IntervalSeconds = 0
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Commands = 0

	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("disabled sections should not be validated, got %v", errs)
	}
}
