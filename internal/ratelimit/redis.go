package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/logging"
)

// DefaultPrefix namespaces limiter keys in Redis.
const DefaultPrefix = "aaflbot:ratelimit:"

// RedisOptions configures a Redis limiter.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Limit    int
	Window   time.Duration
	// Timeout bounds each Redis round trip.
	Timeout time.Duration
}

// Redis is a fixed-window limiter backed by INCR and EXPIRE.
type Redis struct {
	client *redis.Client
	window windowStore
	logger *logging.Logger
	opts   RedisOptions
}

// windowStore is the set of Redis commands one window check issues.
type windowStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, d time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type redisWindow struct {
	client *redis.Client
}

func (w redisWindow) Incr(ctx context.Context, key string) (int64, error) {
	return w.client.Incr(ctx, key).Result()
}

func (w redisWindow) Expire(ctx context.Context, key string, d time.Duration) error {
	return w.client.Expire(ctx, key, d).Err()
}

func (w redisWindow) TTL(ctx context.Context, key string) (time.Duration, error) {
	return w.client.TTL(ctx, key).Result()
}

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(opts RedisOptions, logger *logging.Logger) (*Redis, error) {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 250 * time.Millisecond
	}
	if logger == nil {
		logger = logging.NopLogger()
	}

	client := redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connect to redis at %s", opts.Addr)
	}
	return &Redis{
		client: client,
		window: redisWindow{client: client},
		logger: logger.WithComponent("ratelimit"),
		opts:   opts,
	}, nil
}

// Allow implements Limiter. Redis failures allow the attempt.
func (r *Redis) Allow(ctx context.Context, key string) Decision {
	if r.opts.Limit <= 0 {
		return Decision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	redisKey := r.opts.Prefix + key
	count, err := r.window.Incr(ctx, redisKey)
	if err != nil {
		r.logger.Error("redis rate limiter error", "op", "incr", "error", err)
		return Decision{Allowed: true}
	}
	if count == 1 {
		if err := r.window.Expire(ctx, redisKey, r.opts.Window); err != nil {
			r.logger.Error("redis rate limiter error", "op", "expire", "error", err)
		}
	}
	ttl, err := r.window.TTL(ctx, redisKey)
	if err == nil && ttl < 0 {
		// The first EXPIRE failed and the key would otherwise never reset.
		if err := r.window.Expire(ctx, redisKey, r.opts.Window); err != nil {
			r.logger.Error("redis rate limiter error", "op", "expire", "error", err)
		}
	}
	if err != nil || ttl <= 0 {
		ttl = r.opts.Window
	}
	return Decision{
		Allowed: int(count) <= r.opts.Limit,
		Count:   int(count),
		Reset:   time.Now().Add(ttl),
	}
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
