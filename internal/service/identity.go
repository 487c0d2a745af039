package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/repository"
)

// IdentityService records who the subjects of events are
type IdentityService struct {
	identities repository.IdentityRepository
	now        func() time.Time
	log        *zap.Logger
}

func NewIdentityService(identities repository.IdentityRepository, log *zap.Logger) *IdentityService {
	return &IdentityService{
		identities: identities,
		now:        time.Now,
		log:        log,
	}
}

// Identify upserts a user's profile and aliases. The newest write wins.
func (s *IdentityService) Identify(ctx context.Context, organizationID string, req *dto.IdentifyRequest) (*domain.UserIdentity, error) {
	if req.UserID == "" {
		verr := &ValidationError{}
		verr.add("user_id", "user_id is required")
		return nil, verr
	}

	properties := req.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	aliases := req.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	identity := &domain.UserIdentity{
		ID:             uuid.NewString(),
		OrganizationID: organizationID,
		UserID:         req.UserID,
		Email:          stringProperty(properties, "email"),
		Name:           stringProperty(properties, "name"),
		Properties:     properties,
		Aliases:        aliases,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.identities.UpsertIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to upsert user identity: %w", err)
	}

	logger.FromContext(ctx, s.log).Info("User identified",
		zap.String("organization_id", organizationID),
		zap.String("identity_id", identity.ID),
		zap.Int("alias_count", len(aliases)))

	return identity, nil
}

func stringProperty(properties map[string]any, name string) string {
	v, _ := properties[name].(string)
	return v
}
