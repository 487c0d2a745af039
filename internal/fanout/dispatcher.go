// Package fanout runs the side effects of a stored event without holding up the writer.
package fanout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/cache"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
)

// BroadcastMessage is published on the channel topic for live subscribers
type BroadcastMessage struct {
	Type string        `json:"type"`
	Data *domain.Event `json:"data"`
}

type Dispatcher struct {
	cache     CacheInvalidator
	workflows WorkflowPublisher
	runner    Runner
	log       *zap.Logger
}

func NewDispatcher(cache CacheInvalidator, workflows WorkflowPublisher, runner Runner, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		cache:     cache,
		workflows: workflows,
		runner:    runner,
		log:       log,
	}
}

// Dispatch schedules invalidation, broadcast and the workflow trigger for a
// stored event and returns immediately. Each step fails on its own.
func (d *Dispatcher) Dispatch(ctx context.Context, event *domain.Event) {
	d.runner.Go(ctx, "fanout.invalidate", func(ctx context.Context) error {
		d.cache.InvalidateChannel(ctx, event.ChannelID)
		d.cache.InvalidateOrganization(ctx, event.OrganizationID)
		return nil
	})

	d.runner.Go(ctx, "fanout.broadcast", func(ctx context.Context) error {
		msg := BroadcastMessage{Type: "event", Data: event}
		if err := d.cache.Publish(ctx, cache.ChannelTopic(event.ChannelID), msg); err != nil {
			metrics.FanoutFailuresTotal.WithLabelValues("broadcast").Inc()
			return fmt.Errorf("failed to broadcast event %s: %w", event.ID, err)
		}
		return nil
	})

	d.runner.Go(ctx, "fanout.workflow", func(ctx context.Context) error {
		if err := d.workflows.PublishWorkflow(ctx, domain.NewEventWorkflow(event)); err != nil {
			metrics.FanoutFailuresTotal.WithLabelValues("workflow").Inc()
			return fmt.Errorf("failed to trigger workflow for event %s: %w", event.ID, err)
		}
		return nil
	})

	logger.FromContext(ctx, d.log).Debug("Event fan-out scheduled",
		zap.String("event_id", event.ID),
		zap.String("channel_id", event.ChannelID))
}
