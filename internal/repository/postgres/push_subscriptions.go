package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emitkithq/emitkit/internal/domain"
)

const pushColumns = `id, user_id, organization_id, endpoint, p256dh, auth, channel_ids, created_at`

type PushSubscriptionRepository struct {
	q Querier
}

func NewPushSubscriptionRepository(q Querier) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{q: q}
}

// Upsert keys subscriptions by endpoint; re-registering a browser replaces its keys and channels.
func (r *PushSubscriptionRepository) Upsert(ctx context.Context, s *domain.PushSubscription) error {
	channels := s.ChannelIDs
	if channels == nil {
		channels = []string{}
	}
	err := r.q.QueryRow(ctx, `
		INSERT INTO push_subscriptions (id, user_id, organization_id, endpoint, p256dh, auth, channel_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			organization_id = EXCLUDED.organization_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			channel_ids = EXCLUDED.channel_ids
		RETURNING id, created_at`,
		s.ID, s.UserID, s.OrganizationID, s.Endpoint, s.P256dhKey, s.AuthKey, channels).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	s.ChannelIDs = channels
	return nil
}

func (r *PushSubscriptionRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM push_subscriptions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func (r *PushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, userID, endpoint string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

func (r *PushSubscriptionRepository) ListByUsers(ctx context.Context, userIDs []string) ([]*domain.PushSubscription, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, `SELECT `+pushColumns+` FROM push_subscriptions WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func (r *PushSubscriptionRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.PushSubscription, error) {
	rows, err := r.q.Query(ctx, `SELECT `+pushColumns+` FROM push_subscriptions WHERE organization_id = $1`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

func collectSubscriptions(rows pgx.Rows) ([]*domain.PushSubscription, error) {
	defer rows.Close()

	var subs []*domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.OrganizationID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.ChannelIDs, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push subscriptions: %w", err)
	}
	return subs, nil
}
