package postgres

import (
	"context"
	"fmt"

	"github.com/emitkithq/emitkit/internal/domain"
)

type WebhookRepository struct {
	q Querier
}

func NewWebhookRepository(q Querier) *WebhookRepository {
	return &WebhookRepository{q: q}
}

// Create stores the webhook. Secret must already be encrypted.
func (r *WebhookRepository) Create(ctx context.Context, w *domain.Webhook) error {
	events := w.Events
	if len(events) == 0 {
		events = []string{domain.WebhookEventAll}
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO webhooks (id, channel_id, organization_id, url, secret, events, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		w.ID, w.ChannelID, w.OrganizationID, w.URL, w.Secret, events, w.Enabled).Scan(&w.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	w.Events = events
	return nil
}

func (r *WebhookRepository) ListEnabledByChannel(ctx context.Context, channelID string) ([]*domain.Webhook, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, channel_id, organization_id, url, secret, events, enabled, created_at
		FROM webhooks
		WHERE channel_id = $1 AND enabled
		ORDER BY created_at`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*domain.Webhook
	for rows.Next() {
		var w domain.Webhook
		if err := rows.Scan(&w.ID, &w.ChannelID, &w.OrganizationID, &w.URL, &w.Secret, &w.Events, &w.Enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}
	return webhooks, nil
}
