package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

type APIKeyRepository struct {
	q Querier
}

func NewAPIKeyRepository(q Querier) *APIKeyRepository {
	return &APIKeyRepository{q: q}
}

// GetByHash finds a key of a live project by the SHA-256 hex of its secret.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var k domain.APIKey
	err := r.q.QueryRow(ctx, `
		SELECT k.id, k.organization_id, k.project_id, k.name, k.rate_limit, k.enabled, k.expires_at
		FROM api_keys k
		JOIN projects p ON p.id = k.project_id AND p.deleted_at IS NULL
		WHERE k.key_hash = $1`, keyHash).
		Scan(&k.ID, &k.OrganizationID, &k.ProjectID, &k.Name, &k.RateLimit, &k.Enabled, &k.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return &k, nil
}

type SessionRepository struct {
	q Querier
}

func NewSessionRepository(q Querier) *SessionRepository {
	return &SessionRepository{q: q}
}

// GetByToken returns an unexpired session with the caller's role in its active organization.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRow(ctx, `
		SELECT s.token, s.user_id, s.active_organization_id, m.role, s.expires_at
		FROM sessions s
		JOIN members m ON m.user_id = s.user_id AND m.organization_id = s.active_organization_id
		WHERE s.token = $1 AND s.expires_at > now()`, token).
		Scan(&s.Token, &s.UserID, &s.ActiveOrganizationID, &s.Role, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}
