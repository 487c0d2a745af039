package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

type ProjectRepository struct {
	q Querier
}

func NewProjectRepository(q Querier) *ProjectRepository {
	return &ProjectRepository{q: q}
}

func (r *ProjectRepository) GetByID(ctx context.Context, organizationID, projectID string) (*domain.Project, error) {
	var p domain.Project
	var tier string
	err := r.q.QueryRow(ctx, `
		SELECT p.id, p.organization_id, p.name, p.deleted_at, o.retention_tier
		FROM projects p
		JOIN organizations o ON o.id = p.organization_id
		WHERE p.id = $1 AND p.organization_id = $2 AND p.deleted_at IS NULL`,
		projectID, organizationID).Scan(&p.ID, &p.OrganizationID, &p.Name, &p.DeletedAt, &tier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.RetentionTier = domain.RetentionTier(tier)
	return &p, nil
}

func (r *ProjectRepository) ListPurgeable(ctx context.Context, tier domain.RetentionTier, cutoff time.Time) ([]*domain.Project, error) {
	rows, err := r.q.Query(ctx, `
		SELECT p.id, p.organization_id, p.name, p.deleted_at, o.retention_tier
		FROM projects p
		JOIN organizations o ON o.id = p.organization_id
		WHERE p.deleted_at IS NOT NULL
			AND p.deleted_at < $1
			AND o.retention_tier = $2
		ORDER BY p.deleted_at`,
		cutoff, string(tier))
	if err != nil {
		return nil, fmt.Errorf("failed to list purgeable projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		var t string
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.DeletedAt, &t); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.RetentionTier = domain.RetentionTier(t)
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// Purge removes the project, its channels, their webhooks and its API keys in one transaction.
func (r *ProjectRepository) Purge(ctx context.Context, projectID string) (repository.PurgeCounts, error) {
	var counts repository.PurgeCounts

	err := pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM webhooks
			WHERE channel_id IN (SELECT id FROM channels WHERE project_id = $1)`, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete webhooks: %w", err)
		}
		counts.Webhooks = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM api_keys WHERE project_id = $1`, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete api keys: %w", err)
		}
		counts.APIKeys = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM channels WHERE project_id = $1`, projectID)
		if err != nil {
			return fmt.Errorf("failed to delete channels: %w", err)
		}
		counts.Channels = tag.RowsAffected()

		if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
	if err != nil {
		return repository.PurgeCounts{}, err
	}
	return counts, nil
}
