package cache

import (
	"context"
	"time"
)

// BytesCache stores opaque provider responses for a short time.
type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Limiter hands out a fixed budget of calls per window and key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

func TrackingKey(awbCode string) string { return "shipping:track:" + awbCode }

func CouriersKey(pincode, weight string) string { return "shipping:couriers:" + pincode + ":" + weight }
