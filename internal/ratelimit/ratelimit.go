// Package ratelimit enforces per-key request budgets with a fixed
// one-minute window backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"subburner/internal/pkg/logger"
)

// Counter is the slice of Redis the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type Limiter struct {
	counter Counter
	prefix  string
	log     *logger.Logger
	now     func() time.Time
}

func New(counter Counter, prefix string, log *logger.Logger) *Limiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Limiter{
		counter: counter,
		prefix:  prefix,
		log:     log.WithComponent("ratelimit"),
		now:     time.Now,
	}
}

// Allow counts one request against the key's current minute window and
// reports whether it fits within limit. limit <= 0 disables the check.
// Counter failures fail open so a Redis outage does not take the API
// down with it.
func (l *Limiter) Allow(ctx context.Context, keyID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	window := l.now().UTC().Unix() / 60
	bucket := fmt.Sprintf("%s:%s:%d", l.prefix, keyID, window)

	n, err := l.counter.Incr(ctx, bucket)
	if err != nil {
		l.log.FromContext(ctx).Warn("rate limit counter unavailable, allowing request",
			"key_id", keyID, "error", err)
		return true, nil
	}
	if n == 1 {
		// First hit in the window owns the expiry. Two minutes covers
		// clock skew between the API and Redis.
		if err := l.counter.Expire(ctx, bucket, 2*time.Minute); err != nil {
			l.log.FromContext(ctx).Warn("rate limit expiry not set", "bucket", bucket, "error", err)
		}
	}
	return n <= int64(limit), nil
}

type redisCounter struct {
	rdb *redis.Client
}

// NewRedisCounter adapts a go-redis client to the Counter interface.
func NewRedisCounter(rdb *redis.Client) Counter {
	return &redisCounter{rdb: rdb}
}

func (c *redisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, key).Result()
}

func (c *redisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}
