package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/lkmninja/aaflbot/internal/logging"
)

// Live holds the current configuration snapshot of a running server.
// Readers call Get at the start of a unit of work and keep using that
// snapshot; a reload never changes a workflow that is already running.
type Live struct {
	current atomic.Pointer[Config]
	onSwap  []func(*Config)
}

// NewLive creates a Live holding cfg.
func NewLive(cfg *Config) *Live {
	l := &Live{}
	l.current.Store(cfg)
	return l
}

// Get returns the current snapshot.
func (l *Live) Get() *Config {
	return l.current.Load()
}

// OnSwap registers fn to run after every successful Store. It must be
// called before Watch.
func (l *Live) OnSwap(fn func(*Config)) {
	l.onSwap = append(l.onSwap, fn)
}

// Store replaces the snapshot and notifies OnSwap callbacks.
func (l *Live) Store(cfg *Config) {
	l.current.Store(cfg)
	for _, fn := range l.onSwap {
		fn(cfg)
	}
}

// Reload re-reads the configuration from viper. An invalid file leaves the
// previous snapshot in place and returns the validation error.
func (l *Live) Reload() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	l.Store(cfg)
	return nil
}

// Watch starts viper's file watcher and reloads into l on every write to
// the active config file. It is a no-op when no config file is in use.
func (l *Live) Watch(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	logger = logger.WithComponent("config")
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := l.Reload(); err != nil {
			logger.Warn("config reload rejected", "file", e.Name, "error", err.Error())
			return
		}
		logger.Info("config reloaded", "file", e.Name)
	})
	viper.WatchConfig()
}
