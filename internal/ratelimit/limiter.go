package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/logging"
)

const sweepInterval = 5 * time.Minute

// Limiter decides whether a key may act again in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
	Close() error
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed bool
	// Count is the number of attempts seen in the window, this one included.
	Count int
	// Reset is when the window ends.
	Reset time.Time
}

// RetryAfter returns how long until the window resets, rounded up to a second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.Reset.Sub(now)
	if wait <= 0 {
		return 0
	}
	return wait.Round(time.Second) + time.Second
}

// New builds the limiter described by cfg: none when disabled, Redis when
// an address is set, otherwise in-memory.
func New(cfg config.RateLimitConfig, logger *logging.Logger) (Limiter, error) {
	switch {
	case !cfg.Enabled:
		return Nop{}, nil
	case cfg.RedisAddr != "":
		return NewRedis(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
			Limit:    cfg.Commands,
			Window:   cfg.Window(),
		}, logger)
	default:
		return NewMemory(cfg.Commands, cfg.Window()), nil
	}
}

// Nop allows everything.
type Nop struct{}

// Allow implements Limiter.
func (Nop) Allow(context.Context, string) Decision { return Decision{Allowed: true} }

// Close implements Limiter.
func (Nop) Close() error { return nil }

type window struct {
	count int
	end   time.Time
}

// Memory is an in-process fixed-window limiter.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]window
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemory creates a Memory limiter allowing limit attempts per window.
// A non-positive limit allows everything.
func NewMemory(limit int, w time.Duration) *Memory {
	if w <= 0 {
		w = time.Minute
	}
	m := &Memory{
		limit:   limit,
		window:  w,
		now:     time.Now,
		entries: make(map[string]window),
		stopCh:  make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string) Decision {
	if m.limit <= 0 {
		return Decision{Allowed: true}
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.entries[key]
	if !ok || !now.Before(state.end) {
		state = window{count: 1, end: now.Add(m.window)}
		m.entries[key] = state
		return Decision{Allowed: true, Count: 1, Reset: state.end}
	}
	if state.count >= m.limit {
		return Decision{Allowed: false, Count: state.count, Reset: state.end}
	}
	state.count++
	m.entries[key] = state
	return Decision{Allowed: true, Count: state.count, Reset: state.end}
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep(m.now())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, state := range m.entries {
		if !now.Before(state.end) {
			delete(m.entries, key)
		}
	}
}

// Close stops the background sweep.
func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stopCh) })
	return nil
}
