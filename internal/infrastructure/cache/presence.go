// Package cache provides the Redis-backed presence cache. The usage
// pipeline publishes last-seen marks here so API reads don't touch the
// users table for liveness.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veilnet-io/veilnet/internal/shared/config"
	"github.com/veilnet-io/veilnet/internal/shared/logger"
)

const presenceTTL = 10 * time.Minute

// PresenceCache records when users were last seen in traffic reports.
// A nil receiver-safe disabled mode turns every call into a no-op so
// callers never branch on configuration.
type PresenceCache struct {
	client *redis.Client
	logger logger.Interface
}

// NewPresenceCache connects to Redis when enabled; otherwise returns a
// disabled cache.
func NewPresenceCache(cfg *config.RedisConfig, log logger.Interface) *PresenceCache {
	if cfg == nil || !cfg.Enabled {
		return &PresenceCache{logger: log}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &PresenceCache{client: client, logger: log}
}

// NewPresenceCacheWithClient wraps an existing client, used by tests.
func NewPresenceCacheWithClient(client *redis.Client, log logger.Interface) *PresenceCache {
	return &PresenceCache{client: client, logger: log}
}

// Enabled reports whether a Redis backend is attached.
func (c *PresenceCache) Enabled() bool { return c != nil && c.client != nil }

func presenceKey(userID uint) string {
	return fmt.Sprintf("veilnet:online_at:%d", userID)
}

// MarkOnline records the user's last-seen time.
func (c *PresenceCache) MarkOnline(ctx context.Context, userID uint, at time.Time) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Set(ctx, presenceKey(userID), at.UTC().Format(time.RFC3339), presenceTTL).Err(); err != nil {
		c.logger.Debugw("failed to write presence mark", "user_id", userID, "error", err)
	}
}

// LastOnline returns the user's last-seen time, or nil when unknown.
func (c *PresenceCache) LastOnline(ctx context.Context, userID uint) *time.Time {
	if !c.Enabled() {
		return nil
	}
	raw, err := c.client.Get(ctx, presenceKey(userID)).Result()
	if err != nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// Forget drops the user's presence mark, used on delete.
func (c *PresenceCache) Forget(ctx context.Context, userID uint) {
	if !c.Enabled() {
		return
	}
	_ = c.client.Del(ctx, presenceKey(userID)).Err()
}

// Close releases the Redis connection.
func (c *PresenceCache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// Ping verifies connectivity at startup.
func (c *PresenceCache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
