package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

// SessionAuthenticator resolves dashboard session cookies
type SessionAuthenticator struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

func NewSessionAuthenticator(sessions repository.SessionRepository) *SessionAuthenticator {
	return &SessionAuthenticator{sessions: sessions, now: time.Now}
}

// Authenticate returns the live session for token. Sessions without an
// active organization are rejected.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	session, err := a.sessions.GetByToken(ctx, token)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if !a.now().Before(session.ExpiresAt) || session.ActiveOrganizationID == "" {
		return nil, ErrUnauthorized
	}
	return session, nil
}
