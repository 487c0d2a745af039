package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

// UpsertIdentity writes a new identity version; the table keeps the latest by updated_at.
func (r *Repository) UpsertIdentity(ctx context.Context, identity *domain.UserIdentity) error {
	properties := identity.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	rawProperties, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("failed to marshal identity properties: %w", err)
	}
	aliases := identity.Aliases
	if aliases == nil {
		aliases = []string{}
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO user_identities")
	if err != nil {
		return fmt.Errorf("failed to prepare identity batch: %w", err)
	}
	err = batch.Append(
		identity.ID,
		identity.OrganizationID,
		identity.UserID,
		identity.Email,
		identity.Name,
		string(rawProperties),
		aliases,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		_ = batch.Abort()
		return fmt.Errorf("failed to append identity: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

func (r *Repository) GetIdentity(ctx context.Context, organizationID, userID string) (*domain.UserIdentity, error) {
	rows, err := r.client.Pipe(ctx, pipeGetUserIdentity,
		clickhouse.Named("organization_id", organizationID),
		clickhouse.Named("user_id", userID),
	)
	if err != nil {
		return nil, err
	}
	defer r.closeRows(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error reading identity: %w", err)
		}
		return nil, repository.ErrIdentityNotFound
	}

	var (
		identity   domain.UserIdentity
		properties string
	)
	err = rows.Scan(
		&identity.ID,
		&identity.OrganizationID,
		&identity.UserID,
		&identity.Email,
		&identity.Name,
		&properties,
		&identity.Aliases,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan identity: %w", err)
	}

	identity.Properties = map[string]any{}
	if properties != "" {
		if err := json.Unmarshal([]byte(properties), &identity.Properties); err != nil {
			r.log.Warn("Failed to parse identity properties",
				zap.String("user_id", identity.UserID), zap.Error(err))
			identity.Properties = map[string]any{}
		}
	}
	return &identity, nil
}

func (r *Repository) ResolveAlias(ctx context.Context, organizationID, alias string) (string, bool, error) {
	rows, err := r.client.Pipe(ctx, pipeResolveUserAlias,
		clickhouse.Named("organization_id", organizationID),
		clickhouse.Named("alias", alias),
	)
	if err != nil {
		return "", false, err
	}
	defer r.closeRows(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", false, fmt.Errorf("error resolving alias: %w", err)
		}
		return "", false, nil
	}
	var userID string
	if err := rows.Scan(&userID); err != nil {
		return "", false, fmt.Errorf("failed to scan resolved alias: %w", err)
	}
	return userID, true, nil
}
