package idempotency

import (
	"context"
	"time"
)

// KV is the subset of the cache store used for idempotency records
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
