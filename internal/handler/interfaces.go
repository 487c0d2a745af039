package handler

import (
	"context"

	"github.com/emitkithq/emitkit/internal/auth"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/idempotency"
)

// KeyVerifier resolves bearer tokens to API keys
type KeyVerifier interface {
	Verify(ctx context.Context, token string) (*domain.APIKey, error)
}

// RateLimiter meters API key traffic
type RateLimiter interface {
	Allow(ctx context.Context, keyID string, limit int) (auth.RateInfo, bool)
}

// SessionAuthenticator resolves dashboard session tokens
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
}

// IdempotencyStore records and replays ingest responses
type IdempotencyStore interface {
	Lookup(ctx context.Context, organizationID, idempotencyKey string) (*idempotency.Record, bool)
	Save(ctx context.Context, organizationID, idempotencyKey string, rec idempotency.Record) error
}

// SecretEncrypter seals webhook secrets before they are stored
type SecretEncrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Pinger is a dependency probed by the health check
type Pinger interface {
	Ping(ctx context.Context) error
}
