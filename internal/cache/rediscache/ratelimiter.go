package rediscache

import (
	"context"
	"time"

	"github.com/BearBump/ShopShip/internal/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c *redis.Client
}

var _ cache.Limiter = (*RateLimiter)(nil)

func NewRateLimiter(addr string) *RateLimiter {
	return NewRateLimiterFromClient(redis.NewClient(&redis.Options{Addr: addr}))
}

func NewRateLimiterFromClient(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow increments the window counter for key. The TTL is set only when the key is
// created, so later calls never extend the window.
// Returns (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// WindowKey buckets key by the minute of now, e.g. "rl:shiprocket:202501011200".
func WindowKey(prefix string, now time.Time) string {
	return prefix + ":" + now.UTC().Format("200601021504")
}
