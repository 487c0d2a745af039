package cache

import (
	"context"
	"time"
)

// Store is the key/value backend behind the cache layer
type Store interface {
	// Get returns found=false with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, payload []byte) error
}
