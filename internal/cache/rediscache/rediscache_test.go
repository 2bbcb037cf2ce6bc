package rediscache

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ShopShip/internal/cache"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	key := cache.TrackingKey("AWB1")
	require.NoError(t, c.Set(ctx, key, []byte(`{"x":1}`), time.Minute))

	b, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte(`{"x":1}`), b)

	require.NoError(t, c.Delete(ctx, key, "missing"))
	_, ok, err = c.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Delete(ctx))
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiterFromClient(client)

	ctx := context.Background()
	ok, n, err := rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)

	mr.FastForward(2 * time.Minute)
	ok, n, _ = rl.Allow(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(1), n)
}

func TestRateLimiter_WindowNotExtended(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := NewRateLimiterFromClient(client)
	ctx := context.Background()

	_, _, err := rl.Allow(ctx, "rl:fixed", 5, time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Minute, mr.TTL("rl:fixed"))

	mr.FastForward(40 * time.Second)
	_, n, err := rl.Allow(ctx, "rl:fixed", 5, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, 20*time.Second, mr.TTL("rl:fixed"))

	mr.FastForward(21 * time.Second)
	_, n, err = rl.Allow(ctx, "rl:fixed", 5, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestWindowKey(t *testing.T) {
	at := time.Date(2025, 1, 1, 12, 34, 56, 0, time.UTC)
	require.Equal(t, "rl:shiprocket:202501011234", WindowKey("rl:shiprocket", at))
}
