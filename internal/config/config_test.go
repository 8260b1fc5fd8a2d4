package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.League.DefaultRosterCap != 10 {
		t.Errorf("League.DefaultRosterCap = %d, want 10", cfg.League.DefaultRosterCap)
	}
	if cfg.League.CaptainRole != "Franchise Owner" {
		t.Errorf("League.CaptainRole = %q, want %q", cfg.League.CaptainRole, "Franchise Owner")
	}
	if cfg.League.CommandPrefix != "/" {
		t.Errorf("League.CommandPrefix = %q, want %q", cfg.League.CommandPrefix, "/")
	}

	if cfg.Trade.GroupTimeout() != 60*time.Second {
		t.Errorf("Trade.GroupTimeout() = %v, want 60s", cfg.Trade.GroupTimeout())
	}
	if cfg.Trade.ConsentTimeout() != 24*time.Hour {
		t.Errorf("Trade.ConsentTimeout() = %v, want 24h", cfg.Trade.ConsentTimeout())
	}
	if cfg.Trade.VoteWindow() != 20*time.Second {
		t.Errorf("Trade.VoteWindow() = %v, want 20s", cfg.Trade.VoteWindow())
	}
	if cfg.Trade.RevalidateCaptaincy {
		t.Error("Trade.RevalidateCaptaincy should be false by default")
	}
	if cfg.Signing.ConsentTimeout() != 24*time.Hour {
		t.Errorf("Signing.ConsentTimeout() = %v, want 24h", cfg.Signing.ConsentTimeout())
	}

	if !cfg.RoleSync.Enabled || cfg.RoleSync.Interval() != time.Minute {
		t.Errorf("RoleSync = %+v, want enabled every 60s", cfg.RoleSync)
	}
	if cfg.Gateway.TokenTTL() != 30*24*time.Hour {
		t.Errorf("Gateway.TokenTTL() = %v, want 720h", cfg.Gateway.TokenTTL())
	}
	if cfg.RateLimit.Window() != time.Minute {
		t.Errorf("RateLimit.Window() = %v, want 1m", cfg.RateLimit.Window())
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Errorf("Kafka.Brokers = %v, want empty", cfg.Kafka.Brokers)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")

		if got, want := ConfigDir(), "/custom/config/aaflbot"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to ~/.config/aaflbot", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")

		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("cannot determine home directory")
		}
		if got, want := ConfigDir(), filepath.Join(home, ".config", "aaflbot"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/x")
	if got, want := ConfigFile(), "/x/aaflbot/config.yaml"; got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Cleanup(viper.Reset)

	t.Run("file overrides defaults", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.SetConfigFile(writeConfig(t, `
league:
  default_roster_cap: 12
trade:
  vote_window_seconds: 30
  revalidate_captaincy: true
kafka:
  brokers: ["localhost:9092"]
`))
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig failed: %v", err)
		}

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.League.DefaultRosterCap != 12 {
			t.Errorf("DefaultRosterCap = %d, want 12", cfg.League.DefaultRosterCap)
		}
		if cfg.Trade.VoteWindowSeconds != 30 || !cfg.Trade.RevalidateCaptaincy {
			t.Errorf("Trade = %+v", cfg.Trade)
		}
		if cfg.Trade.GroupTimeoutSeconds != 60 {
			t.Errorf("GroupTimeoutSeconds = %d, want default 60", cfg.Trade.GroupTimeoutSeconds)
		}
		if len(cfg.Kafka.Brokers) != 1 || cfg.Kafka.Brokers[0] != "localhost:9092" {
			t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
		}
	})

	t.Run("invalid file returns validation errors", func(t *testing.T) {
		viper.Reset()
		SetDefaults()
		viper.SetConfigFile(writeConfig(t, "trade:\n  vote_window_seconds: 0\n"))
		if err := viper.ReadInConfig(); err != nil {
			t.Fatalf("ReadInConfig failed: %v", err)
		}

		_, err := Load()
		if err == nil {
			t.Fatal("expected validation error")
		}
		if _, ok := err.(ValidationErrors); !ok {
			t.Errorf("error type = %T, want ValidationErrors", err)
		}
		if Get().Trade.VoteWindowSeconds != 20 {
			t.Error("Get() should fall back to defaults on invalid config")
		}
	})
}

func TestLive(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Reset()
	SetDefaults()

	live := NewLive(Default())
	var swapped *Config
	live.OnSwap(func(c *Config) { swapped = c })

	viper.Set("league.default_roster_cap", 15)
	if err := live.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if live.Get().League.DefaultRosterCap != 15 {
		t.Errorf("DefaultRosterCap = %d, want 15", live.Get().League.DefaultRosterCap)
	}
	if swapped != live.Get() {
		t.Error("OnSwap callback should receive the new snapshot")
	}

	before := live.Get()
	viper.Set("trade.vote_window_seconds", -1)
	if err := live.Reload(); err == nil {
		t.Fatal("expected Reload to reject invalid config")
	}
	if live.Get() != before {
		t.Error("invalid reload must keep the previous snapshot")
	}
}
