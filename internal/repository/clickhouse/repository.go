package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/repository"
)

const (
	maxTitleLen       = 500
	maxDescriptionLen = 5000
	maxIconLen        = 50
	maxUserIDLen      = 255
)

var (
	statsFloor   = time.Unix(0, 0).UTC()
	statsCeiling = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Repository implements EventRepository and IdentityRepository for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the events, quarantine and identity tables
func (r *Repository) InitSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if err := r.client.Conn().Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// Insert appends valid events in one batch and records invalid ones in the
// quarantine table.
func (r *Repository) Insert(ctx context.Context, events []*domain.Event) (repository.IngestResult, error) {
	var result repository.IngestResult
	if len(events) == 0 {
		return result, nil
	}
	log := logger.FromContext(ctx, r.log)

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return result, fmt.Errorf("failed to prepare batch: %w", err)
	}

	var quarantined []quarantineRow
	for _, event := range events {
		metadata, reason := validateRow(event)
		if reason != "" {
			quarantined = append(quarantined, newQuarantineRow(event, reason))
			result.QuarantinedIDs = append(result.QuarantinedIDs, event.ID)
			continue
		}

		err := batch.Append(
			event.ID,
			event.ChannelID,
			event.ProjectID,
			event.OrganizationID,
			string(event.RetentionTier),
			event.Title,
			event.Description,
			event.Icon,
			nonNilTags(event.Tags),
			metadata,
			event.UserID,
			event.Notify,
			event.DisplayAs,
			string(event.Source),
			event.CreatedAt,
		)
		if err != nil {
			_ = batch.Abort()
			return result, fmt.Errorf("failed to append event to batch: %w", err)
		}
		result.SuccessfulRows++
	}

	if result.SuccessfulRows > 0 {
		if err := batch.Send(); err != nil {
			return repository.IngestResult{}, fmt.Errorf("failed to send batch: %w", err)
		}
	} else {
		_ = batch.Abort()
	}

	result.QuarantinedRows = len(quarantined)
	if len(quarantined) > 0 {
		if err := r.quarantine(ctx, quarantined); err != nil {
			log.Error("Failed to record quarantined events", zap.Int("count", len(quarantined)), zap.Error(err))
		}
	}

	return result, nil
}

// List returns a page of events, newest first, with the total count.
func (r *Repository) List(ctx context.Context, query repository.ListQuery) (*repository.EventPage, error) {
	args := []any{
		clickhouse.Named("organization_id", query.OrganizationID),
		clickhouse.Named("channel_id", query.ChannelID),
		clickhouse.Named("project_id", query.ProjectID),
	}

	rows, err := r.client.Pipe(ctx, pipeGetEventsPaginated,
		append(args, clickhouse.Named("limit", query.Limit), clickhouse.Named("offset", query.Offset))...)
	if err != nil {
		return nil, err
	}
	items, err := r.scanEvents(rows)
	if err != nil {
		return nil, err
	}

	row, err := r.client.PipeRow(ctx, pipeCountEvents, args...)
	if err != nil {
		return nil, err
	}
	var total uint64
	if err := row.Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}

	return &repository.EventPage{Items: items, Total: total}, nil
}

func (r *Repository) After(ctx context.Context, organizationID, channelID string, since time.Time, limit int) ([]*domain.Event, error) {
	rows, err := r.client.Pipe(ctx, pipeStreamEvents,
		clickhouse.Named("organization_id", organizationID),
		clickhouse.Named("channel_id", channelID),
		clickhouse.DateNamed("since", since.UTC(), clickhouse.MilliSeconds),
		clickhouse.Named("limit", limit),
	)
	if err != nil {
		return nil, err
	}
	return r.scanEvents(rows)
}

func (r *Repository) GetByID(ctx context.Context, eventID string) (*domain.Event, error) {
	rows, err := r.client.Pipe(ctx, pipeGetEventByID, clickhouse.Named("event_id", eventID))
	if err != nil {
		return nil, err
	}
	events, err := r.scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, repository.ErrEventNotFound
	}
	return events[0], nil
}

// Stats aggregates totals, unique users and tag counts over the query range.
func (r *Repository) Stats(ctx context.Context, query repository.StatsQuery) (*repository.EventStats, error) {
	from, to := statsBounds(query)
	args := []any{
		clickhouse.Named("organization_id", query.OrganizationID),
		clickhouse.Named("channel_id", query.ChannelID),
		clickhouse.DateNamed("date_from", from, clickhouse.MilliSeconds),
		clickhouse.DateNamed("date_to", to, clickhouse.MilliSeconds),
	}

	stats := &repository.EventStats{TagsDistribution: map[string]uint64{}}

	row, err := r.client.PipeRow(ctx, pipeGetEventsStats, args...)
	if err != nil {
		return nil, err
	}
	if err := row.Scan(&stats.TotalEvents, &stats.UniqueUsers); err != nil {
		return nil, fmt.Errorf("failed to query event stats: %w", err)
	}

	rows, err := r.client.Pipe(ctx, pipeGetTagsStats, args...)
	if err != nil {
		return nil, err
	}
	defer r.closeRows(rows)

	for rows.Next() {
		var tag string
		var count uint64
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, fmt.Errorf("failed to scan tag stats row: %w", err)
		}
		stats.TagsDistribution[tag] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag stats rows: %w", err)
	}

	return stats, nil
}

func (r *Repository) Delete(ctx context.Context, organizationID, channelID, eventID string) error {
	err := r.client.Conn().Exec(ctx,
		`DELETE FROM events WHERE id = @id AND channel_id = @channel_id AND organization_id = @organization_id`,
		clickhouse.Named("id", eventID),
		clickhouse.Named("channel_id", channelID),
		clickhouse.Named("organization_id", organizationID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

func (r *Repository) DeleteByProject(ctx context.Context, organizationID, projectID string) error {
	err := r.client.Conn().Exec(ctx,
		`DELETE FROM events WHERE organization_id = @organization_id AND project_id = @project_id`,
		clickhouse.Named("organization_id", organizationID),
		clickhouse.Named("project_id", projectID),
	)
	if err != nil {
		return fmt.Errorf("failed to delete project events: %w", err)
	}
	return nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) scanEvents(rows driver.Rows) ([]*domain.Event, error) {
	defer r.closeRows(rows)

	events := []*domain.Event{}
	for rows.Next() {
		var (
			e        domain.Event
			tier     string
			source   string
			metadata string
		)
		err := rows.Scan(
			&e.ID,
			&e.ChannelID,
			&e.ProjectID,
			&e.OrganizationID,
			&tier,
			&e.Title,
			&e.Description,
			&e.Icon,
			&e.Tags,
			&metadata,
			&e.UserID,
			&e.Notify,
			&e.DisplayAs,
			&source,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.RetentionTier = domain.RetentionTier(tier)
		e.Source = domain.Source(source)
		e.Metadata = r.decodeMetadata(e.ID, metadata)
		if e.Tags == nil {
			e.Tags = []string{}
		}
		e.CreatedAt = e.CreatedAt.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

func (r *Repository) decodeMetadata(eventID, raw string) map[string]any {
	metadata := map[string]any{}
	if raw == "" {
		return metadata
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		r.log.Warn("Failed to parse event metadata", zap.String("event_id", eventID), zap.Error(err))
		return map[string]any{}
	}
	return metadata
}

func (r *Repository) closeRows(rows driver.Rows) {
	if err := rows.Close(); err != nil {
		r.log.Error("Failed to close rows", zap.Error(err))
	}
}

// validateRow returns the serialized metadata, or a non-empty reason when the
// row must be quarantined. Lengths count characters like request binding does.
func validateRow(e *domain.Event) (string, string) {
	switch {
	case e.ID == "":
		return "", "missing id"
	case e.ChannelID == "":
		return "", "missing channel_id"
	case e.OrganizationID == "":
		return "", "missing organization_id"
	case e.Title == "":
		return "", "missing title"
	case utf8.RuneCountInString(e.Title) > maxTitleLen:
		return "", "title too long"
	case utf8.RuneCountInString(e.Description) > maxDescriptionLen:
		return "", "description too long"
	case utf8.RuneCountInString(e.Icon) > maxIconLen:
		return "", "icon too long"
	case utf8.RuneCountInString(e.UserID) > maxUserIDLen:
		return "", "user_id too long"
	case !domain.ValidRetentionTier(e.RetentionTier):
		return "", fmt.Sprintf("invalid retention_tier %q", e.RetentionTier)
	case !domain.ValidSource(e.Source):
		return "", fmt.Sprintf("invalid source %q", e.Source)
	case e.CreatedAt.IsZero():
		return "", "missing created_at"
	}

	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", "metadata is not serializable"
	}
	return string(raw), ""
}

func statsBounds(q repository.StatsQuery) (time.Time, time.Time) {
	from, to := statsFloor, statsCeiling
	if q.From != nil {
		from = q.From.UTC()
	}
	if q.To != nil {
		to = q.To.UTC()
	}
	return from, to
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
