package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
)

type quarantineRow struct {
	id             string
	channelID      string
	organizationID string
	reason         string
	payload        string
	at             time.Time
}

func newQuarantineRow(e *domain.Event, reason string) quarantineRow {
	payload, err := json.Marshal(e)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"id":%q}`, e.ID))
	}
	return quarantineRow{
		id:             e.ID,
		channelID:      e.ChannelID,
		organizationID: e.OrganizationID,
		reason:         reason,
		payload:        string(payload),
		at:             time.Now().UTC(),
	}
}

func (r *Repository) quarantine(ctx context.Context, rows []quarantineRow) error {
	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO events_quarantine")
	if err != nil {
		return fmt.Errorf("failed to prepare quarantine batch: %w", err)
	}
	for _, row := range rows {
		if err := batch.Append(row.id, row.channelID, row.organizationID, row.reason, row.payload, row.at); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append quarantine row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send quarantine batch: %w", err)
	}
	return nil
}
