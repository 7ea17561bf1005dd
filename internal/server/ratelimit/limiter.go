// Package ratelimit counts login attempts per key inside a fixed window.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter admits at most a configured number of attempts per key per window.
type Limiter interface {
	// Allow records one attempt for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) (bool, error)
	// Reset forgets all attempts for key.
	Reset(ctx context.Context, key string) error
}

// Commands is the subset of *redis.Client used by RedisLimiter.
type Commands interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLimiter is a fixed-window counter. Every attempt sends EXPIRE NX, so
// the TTL is set once per window and a key left without one by a failed
// EXPIRE gets it on the next attempt. Requires Redis 7 or newer.
type RedisLimiter struct {
	rdb    Commands
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb Commands, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + k
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.key(key)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr: %w", err)
	}
	if err := l.rdb.ExpireNX(ctx, k, l.window).Err(); err != nil {
		return false, fmt.Errorf("redis expire: %w", err)
	}
	return n <= l.limit, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Nop admits everything. Used when no Redis address is configured.
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }

func (Nop) Reset(context.Context, string) error { return nil }
