// Package auth authenticates API keys and dashboard sessions and meters
// API key traffic.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/repository"
)

var ErrUnauthorized = errors.New("unauthorized")

const DefaultKeyCacheTTL = 10 * time.Minute

// KeyCache memoizes verified keys
type KeyCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cachedKey struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ProjectID      string     `json:"project_id"`
	Name           string     `json:"name"`
	RateLimit      int        `json:"rate_limit"`
	Enabled        bool       `json:"enabled"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// KeyVerifier resolves bearer tokens to API keys
type KeyVerifier struct {
	keys  repository.APIKeyRepository
	cache KeyCache
	ttl   time.Duration
	now   func() time.Time
	log   *zap.Logger
}

// NewKeyVerifier creates a verifier. cache may be nil.
func NewKeyVerifier(keys repository.APIKeyRepository, cache KeyCache, ttl time.Duration, log *zap.Logger) *KeyVerifier {
	if ttl <= 0 {
		ttl = DefaultKeyCacheTTL
	}
	return &KeyVerifier{keys: keys, cache: cache, ttl: ttl, now: time.Now, log: log}
}

// HashKey returns the hex SHA-256 of a raw API key, the form keys are stored in.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Verify returns the usable API key for token or ErrUnauthorized.
func (v *KeyVerifier) Verify(ctx context.Context, token string) (*domain.APIKey, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	log := logger.FromContext(ctx, v.log)
	hash := HashKey(token)
	cacheKey := "apikey:" + hash

	key := v.fromCache(ctx, cacheKey)
	if key == nil {
		var err error
		key, err = v.keys.GetByHash(ctx, hash)
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			log.Warn("Unknown API key", zap.String("key_prefix", hash[:8]))
			return nil, ErrUnauthorized
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up api key: %w", err)
		}
		v.toCache(ctx, cacheKey, key)
	}

	if !key.Usable(v.now()) {
		log.Warn("API key disabled or expired", zap.String("api_key_id", key.ID))
		return nil, ErrUnauthorized
	}
	return key, nil
}

func (v *KeyVerifier) fromCache(ctx context.Context, cacheKey string) *domain.APIKey {
	if v.cache == nil {
		return nil
	}
	raw, found, err := v.cache.Get(ctx, cacheKey)
	if err != nil {
		logger.FromContext(ctx, v.log).Warn("API key cache read failed", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}
	var c cachedKey
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == "" {
		return nil
	}
	return &domain.APIKey{
		ID:             c.ID,
		OrganizationID: c.OrganizationID,
		ProjectID:      c.ProjectID,
		Name:           c.Name,
		RateLimit:      c.RateLimit,
		Enabled:        c.Enabled,
		ExpiresAt:      c.ExpiresAt,
	}
}

func (v *KeyVerifier) toCache(ctx context.Context, cacheKey string, key *domain.APIKey) {
	if v.cache == nil {
		return
	}
	raw, err := json.Marshal(cachedKey{
		ID:             key.ID,
		OrganizationID: key.OrganizationID,
		ProjectID:      key.ProjectID,
		Name:           key.Name,
		RateLimit:      key.RateLimit,
		Enabled:        key.Enabled,
		ExpiresAt:      key.ExpiresAt,
	})
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, cacheKey, raw, v.ttl); err != nil {
		logger.FromContext(ctx, v.log).Warn("API key cache write failed", zap.Error(err))
	}
}
