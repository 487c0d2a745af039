package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

const channelColumns = `id, project_id, organization_id, name, icon, description, created_at, deleted_at`

type ChannelRepository struct {
	q Querier
}

func NewChannelRepository(q Querier) *ChannelRepository {
	return &ChannelRepository{q: q}
}

// GetOrCreate inserts the channel unless a live one with the same name exists,
// then reads back whichever row won.
func (r *ChannelRepository) GetOrCreate(ctx context.Context, spec repository.ChannelSpec) (*domain.Channel, error) {
	_, err := r.q.Exec(ctx, `
		INSERT INTO channels (id, project_id, organization_id, name, icon, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (project_id, name) WHERE deleted_at IS NULL DO NOTHING`,
		domain.NewID("channel"), spec.ProjectID, spec.OrganizationID, spec.Name, spec.Icon, spec.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	row := r.q.QueryRow(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE project_id = $1 AND name = $2 AND deleted_at IS NULL`,
		spec.ProjectID, spec.Name)
	ch, err := scanChannel(row)
	if err != nil {
		return nil, fmt.Errorf("failed to load channel %q: %w", spec.Name, err)
	}
	return ch, nil
}

// GetOrCreateMany resolves every spec of one project in two statements: one
// insert of the missing names and one read of all of them. The result is keyed
// by channel name; the first spec of a repeated name wins.
func (r *ChannelRepository) GetOrCreateMany(ctx context.Context, organizationID, projectID string, specs []repository.ChannelSpec) (map[string]*domain.Channel, error) {
	if len(specs) == 0 {
		return map[string]*domain.Channel{}, nil
	}

	seen := make(map[string]bool, len(specs))
	ids := make([]string, 0, len(specs))
	names := make([]string, 0, len(specs))
	icons := make([]string, 0, len(specs))
	descriptions := make([]string, 0, len(specs))
	for _, spec := range specs {
		if seen[spec.Name] {
			continue
		}
		seen[spec.Name] = true
		ids = append(ids, domain.NewID("channel"))
		names = append(names, spec.Name)
		icons = append(icons, spec.Icon)
		descriptions = append(descriptions, spec.Description)
	}

	_, err := r.q.Exec(ctx, `
		INSERT INTO channels (id, project_id, organization_id, name, icon, description)
		SELECT t.id, $1, $2, t.name, t.icon, t.description
		FROM unnest($3::text[], $4::text[], $5::text[], $6::text[]) AS t(id, name, icon, description)
		ON CONFLICT (project_id, name) WHERE deleted_at IS NULL DO NOTHING`,
		projectID, organizationID, ids, names, icons, descriptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create channels: %w", err)
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE project_id = $1 AND name = ANY($2) AND deleted_at IS NULL`,
		projectID, names)
	if err != nil {
		return nil, fmt.Errorf("failed to load channels: %w", err)
	}
	defer rows.Close()

	channels := make(map[string]*domain.Channel, len(names))
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		channels[ch.Name] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channels: %w", err)
	}

	for _, name := range names {
		if _, ok := channels[name]; !ok {
			return nil, fmt.Errorf("failed to load channel %q: %w", name, repository.ErrChannelNotFound)
		}
	}
	return channels, nil
}

func (r *ChannelRepository) GetByID(ctx context.Context, organizationID, channelID string) (*domain.Channel, error) {
	row := r.q.QueryRow(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE id = $1 AND organization_id = $2 AND deleted_at IS NULL`,
		channelID, organizationID)
	return scanChannel(row)
}

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var ch domain.Channel
	err := row.Scan(&ch.ID, &ch.ProjectID, &ch.OrganizationID, &ch.Name, &ch.Icon, &ch.Description, &ch.CreatedAt, &ch.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
