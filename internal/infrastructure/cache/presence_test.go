package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

func testLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testCache(t *testing.T) (*PresenceCache, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewPresenceCacheWithClient(client, testLogger())
	t.Cleanup(func() { cache.Close() })
	return cache, srv
}

func TestPresenceCache_MarkAndRead(t *testing.T) {
	ctx := context.Background()
	cache, srv := testCache(t)

	at := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	cache.MarkOnline(ctx, 42, at)

	got := cache.LastOnline(ctx, 42)
	require.NotNil(t, got)
	assert.True(t, got.Equal(at))

	assert.Nil(t, cache.LastOnline(ctx, 99))

	srv.FastForward(presenceTTL + time.Minute)
	assert.Nil(t, cache.LastOnline(ctx, 42))
}

func TestPresenceCache_Forget(t *testing.T) {
	ctx := context.Background()
	cache, _ := testCache(t)

	cache.MarkOnline(ctx, 7, time.Now().UTC())
	require.NotNil(t, cache.LastOnline(ctx, 7))

	cache.Forget(ctx, 7)
	assert.Nil(t, cache.LastOnline(ctx, 7))
}

func TestPresenceCache_Disabled(t *testing.T) {
	ctx := context.Background()
	cache := NewPresenceCache(&config.RedisConfig{Enabled: false}, testLogger())

	assert.False(t, cache.Enabled())
	// Every call must be a safe no-op without a backend.
	cache.MarkOnline(ctx, 1, time.Now().UTC())
	assert.Nil(t, cache.LastOnline(ctx, 1))
	cache.Forget(ctx, 1)
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Close())
}
