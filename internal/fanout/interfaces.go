package fanout

import (
	"context"

	"github.com/emitkithq/emitkit/internal/domain"
)

// CacheInvalidator drops cached read views and broadcasts new events
type CacheInvalidator interface {
	InvalidateChannel(ctx context.Context, channelID string)
	InvalidateOrganization(ctx context.Context, organizationID string)
	Publish(ctx context.Context, channel string, payload any) error
}

type WorkflowPublisher interface {
	PublishWorkflow(ctx context.Context, workflow *domain.EventWorkflow) error
}

// Runner runs detached work that outlives the request
type Runner interface {
	Go(parent context.Context, name string, fn func(ctx context.Context) error)
}
