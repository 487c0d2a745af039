// Package workflow runs the delivery side of a stored event: outbound
// webhooks and browser push notifications.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/push"
	"github.com/emitkithq/emitkit/internal/repository"
)

// Outcome describes how a run ended
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomeSkipped means the event no longer exists.
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Summary reports what one run delivered
type Summary struct {
	Outcome           Outcome
	WebhooksDelivered int
	WebhooksFailed    int
	PushSent          int
	PushFailed        int
}

type Runner struct {
	events   EventLoader
	webhooks WebhookLister
	dispatch WebhookDispatcher
	push     PushNotifier
	secrets  SecretDecrypter
	appURL   string
	log      *zap.Logger
}

// NewRunner creates a runner. secrets may be nil when webhook secrets are
// stored in the clear.
func NewRunner(events EventLoader, webhooks WebhookLister, dispatch WebhookDispatcher, pushNotifier PushNotifier, secrets SecretDecrypter, appURL string, log *zap.Logger) *Runner {
	return &Runner{
		events:   events,
		webhooks: webhooks,
		dispatch: dispatch,
		push:     pushNotifier,
		secrets:  secrets,
		appURL:   strings.TrimRight(appURL, "/"),
		log:      log,
	}
}

// Run delivers one workflow. An error means nothing was delivered yet and
// the trigger may be retried; once delivery starts, failures are counted in
// the summary instead because webhooks are never re-sent.
func (r *Runner) Run(ctx context.Context, wf *domain.EventWorkflow) (Summary, error) {
	log := logger.FromContext(ctx, r.log).With(
		zap.String("event_id", wf.EventID),
		zap.String("channel_id", wf.ChannelID))

	event, err := r.events.GetByID(ctx, wf.EventID)
	if errors.Is(err, repository.ErrEventNotFound) {
		log.Warn("Workflow event no longer exists")
		metrics.WorkflowRunsTotal.WithLabelValues(string(OutcomeSkipped)).Inc()
		return Summary{Outcome: OutcomeSkipped}, nil
	}
	if err != nil {
		metrics.WorkflowRunsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Summary{Outcome: OutcomeFailed}, fmt.Errorf("failed to load event: %w", err)
	}

	hooks, err := r.webhooks.ListEnabledByChannel(ctx, wf.ChannelID)
	if err != nil {
		metrics.WorkflowRunsTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Summary{Outcome: OutcomeFailed}, fmt.Errorf("failed to list webhooks: %w", err)
	}

	summary := Summary{Outcome: OutcomeCompleted}

	targets := r.prepareWebhooks(ctx, hooks, wf.EventType, &summary)
	if len(targets) > 0 {
		result := r.dispatch.Dispatch(ctx, targets, event)
		summary.WebhooksDelivered = result.Delivered
		summary.WebhooksFailed += result.Failed
	}

	if wf.Notify {
		result, err := r.push.SendToChannels(ctx, wf.OrganizationID, []string{wf.ChannelID}, r.notification(event))
		if err != nil {
			log.Error("Failed to send push notifications", zap.Error(err))
		}
		summary.PushSent = result.Success
		summary.PushFailed = result.Failed
	}

	metrics.WorkflowRunsTotal.WithLabelValues(string(summary.Outcome)).Inc()
	log.Info("Workflow completed",
		zap.Int("webhooks_delivered", summary.WebhooksDelivered),
		zap.Int("webhooks_failed", summary.WebhooksFailed),
		zap.Int("push_sent", summary.PushSent),
		zap.Int("push_failed", summary.PushFailed))

	return summary, nil
}

// prepareWebhooks keeps the webhooks subscribed to eventType and opens their
// secrets. A webhook whose secret cannot be opened is counted as failed.
func (r *Runner) prepareWebhooks(ctx context.Context, hooks []*domain.Webhook, eventType string, summary *Summary) []*domain.Webhook {
	targets := make([]*domain.Webhook, 0, len(hooks))
	for _, hook := range hooks {
		if !hook.Enabled || !hook.Accepts(eventType) {
			continue
		}

		target := *hook
		if target.Secret != "" && r.secrets != nil {
			secret, err := r.secrets.Decrypt(target.Secret)
			if err != nil {
				logger.FromContext(ctx, r.log).Error("Failed to decrypt webhook secret",
					zap.String("webhook_id", hook.ID),
					zap.Error(err))
				summary.WebhooksFailed++
				continue
			}
			target.Secret = secret
		}
		targets = append(targets, &target)
	}
	return targets
}

func (r *Runner) notification(event *domain.Event) push.Notification {
	n := push.Notification{
		Title: event.Title,
		Body:  event.Description,
		Icon:  event.Icon,
		Tag:   event.ID,
		Data: map[string]any{
			"eventId":   event.ID,
			"channelId": event.ChannelID,
			"projectId": event.ProjectID,
		},
	}
	if r.appURL != "" {
		n.URL = fmt.Sprintf("%s/events/%s/%s", r.appURL, event.ProjectID, event.ChannelID)
	}
	return n
}
