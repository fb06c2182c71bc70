// Package ratelimit provides a Redis fixed-window counter keyed by client IP.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned when the caller exhausted the window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps backend failures. Middleware fails open on it.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// Config holds the budget for one limiter.
type Config struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// Limiter counts hits per key in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(client redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Limiter{redis: client, config: cfg}
}

func (l *Limiter) key(id string) string {
	return l.config.Prefix + ":" + id
}

// Allow records a hit for id. When the budget is exceeded it returns
// ErrRateLimited and the time until the window closes.
func (l *Limiter) Allow(ctx context.Context, id string) (time.Duration, error) {
	key := l.key(id)
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: TTL is set on the first hit only.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	if count <= int64(l.config.Limit) {
		return 0, nil
	}

	ttl, err := l.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		// Key lost its expiry; restore it so the window can close.
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = l.config.Window
	}
	return ttl, ErrRateLimited
}
