package retention

import (
	"context"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

// ProjectStore lists and hard-deletes soft-deleted projects
type ProjectStore interface {
	ListPurgeable(ctx context.Context, tier domain.RetentionTier, cutoff time.Time) ([]*domain.Project, error)
	Purge(ctx context.Context, projectID string) (repository.PurgeCounts, error)
}

// EventPurger drops every stored event of a project
type EventPurger interface {
	DeleteByProject(ctx context.Context, organizationID, projectID string) error
}
