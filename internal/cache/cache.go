package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/background"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
)

// Cache memoizes read queries in a Store. Store failures never reach callers.
type Cache struct {
	store Store
	bg    *background.Group
	log   *zap.Logger
}

func New(store Store, bg *background.Group, log *zap.Logger) *Cache {
	return &Cache{store: store, bg: bg, log: log}
}

// WithCache returns the cached value for key, or calls fetch and stores its
// result with ttl without waiting for the write.
func WithCache[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	if c == nil {
		return fetch(ctx)
	}
	log := logger.FromContext(ctx, c.log)

	corrupt := false
	raw, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequestsTotal.WithLabelValues("error").Inc()
		log.Error("Cache read error", zap.String("key", key), zap.Error(err))
	case found:
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
			log.Debug("Cache hit", zap.String("key", key))
			return value, nil
		}
		corrupt = true
		metrics.CacheRequestsTotal.WithLabelValues("corrupt").Inc()
		log.Warn("Cache contains malformed JSON, invalidating",
			zap.String("key", key),
			zap.String("cached_value", truncate(raw, 100)))
	default:
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		log.Debug("Cache miss", zap.String("key", key))
	}

	value, err := fetch(ctx)
	if err != nil {
		if corrupt {
			c.purge(ctx, key)
		}
		return value, err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		log.Error("Failed to serialize data for cache", zap.String("key", key), zap.Error(err))
		if corrupt {
			c.purge(ctx, key)
		}
		return value, nil
	}
	// A corrupt entry is overwritten by the fresh value.
	c.bg.Go(ctx, "cache.write", func(ctx context.Context) error {
		if err := c.store.Set(ctx, key, payload, ttl); err != nil {
			return fmt.Errorf("failed to write cache entry %s: %w", key, err)
		}
		return nil
	})

	return value, nil
}

func (c *Cache) purge(ctx context.Context, key string) {
	c.bg.Go(ctx, "cache.purge", func(ctx context.Context) error {
		if err := c.store.Del(ctx, key); err != nil {
			return fmt.Errorf("failed to delete corrupted cache entry %s: %w", key, err)
		}
		return nil
	})
}

// Invalidate deletes keys, logging instead of returning store failures.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if err := c.store.Del(ctx, keys...); err != nil {
		logger.FromContext(ctx, c.log).Error("Cache invalidation error",
			zap.Strings("keys", keys),
			zap.Error(err))
		return
	}
	logger.FromContext(ctx, c.log).Debug("Cache invalidated", zap.Strings("keys", keys))
}

// InvalidateChannel drops the list and stats views of a channel. The
// realtime view is left to expire on its own.
func (c *Cache) InvalidateChannel(ctx context.Context, channelID string) {
	c.Invalidate(ctx, ChannelListKey(channelID), ChannelStatsKey(channelID))
}

func (c *Cache) InvalidateOrganization(ctx context.Context, organizationID string) {
	c.Invalidate(ctx, OrganizationListKey(organizationID), OrganizationStatsKey(organizationID))
}

// InvalidatePattern is not supported: the store has no key scanning.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	logger.FromContext(ctx, c.log).Warn("Pattern-based cache invalidation is not supported",
		zap.String("pattern", pattern))
}

// Publish broadcasts payload as JSON on channel.
func (c *Cache) Publish(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal publish payload: %w", err)
	}
	if err := c.store.Publish(ctx, channel, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
