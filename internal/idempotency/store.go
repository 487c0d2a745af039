// Package idempotency stores write responses keyed by (organization, Idempotency-Key)
// so retried requests can be replayed instead of re-executed.
package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/logger"
)

const DefaultTTL = 24 * time.Hour

// Record is a previously sent response
type Record struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type Store struct {
	kv  KV
	ttl time.Duration
	log *zap.Logger
}

func NewStore(kv KV, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{kv: kv, ttl: ttl, log: log}
}

func Key(organizationID, idempotencyKey string) string {
	return fmt.Sprintf("idempotency:%s:%s", organizationID, idempotencyKey)
}

// Lookup returns the stored record for the key. Store failures and unreadable
// records are logged and reported as not found.
func (s *Store) Lookup(ctx context.Context, organizationID, idempotencyKey string) (*Record, bool) {
	log := logger.FromContext(ctx, s.log).With(
		zap.String("organization_id", organizationID),
		zap.String("idempotency_key", idempotencyKey))

	raw, found, err := s.kv.Get(ctx, Key(organizationID, idempotencyKey))
	if err != nil {
		log.Error("Failed to read idempotency record", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Status == 0 || len(rec.Body) == 0 {
		log.Warn("Ignoring unreadable idempotency record")
		return nil, false
	}
	return &rec, true
}

// Save writes the record. Callers must wait for it before answering the
// request that produced it.
func (s *Store) Save(ctx context.Context, organizationID, idempotencyKey string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}
	if err := s.kv.Set(ctx, Key(organizationID, idempotencyKey), payload, s.ttl); err != nil {
		return fmt.Errorf("failed to save idempotency record: %w", err)
	}
	return nil
}
