package postgres

import (
	"context"
	"fmt"

	"github.com/emitkithq/emitkit/internal/domain"
)

type OrganizationRepository struct {
	q Querier
}

func NewOrganizationRepository(q Querier) *OrganizationRepository {
	return &OrganizationRepository{q: q}
}

// RetentionTiers looks up all ids in one query. Unknown ids are absent from the result.
func (r *OrganizationRepository) RetentionTiers(ctx context.Context, ids []string) (map[string]domain.RetentionTier, error) {
	tiers := make(map[string]domain.RetentionTier, len(ids))
	if len(ids) == 0 {
		return tiers, nil
	}

	rows, err := r.q.Query(ctx, `SELECT id, retention_tier FROM organizations WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query retention tiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, tier string
		if err := rows.Scan(&id, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan retention tier: %w", err)
		}
		tiers[id] = domain.RetentionTier(tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retention tiers: %w", err)
	}
	return tiers, nil
}
