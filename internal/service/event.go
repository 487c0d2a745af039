package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/cache"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/metrics"
	"github.com/emitkithq/emitkit/internal/repository"
	"github.com/emitkithq/emitkit/internal/slug"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Principal is the tenant an API key authenticates as
type Principal struct {
	OrganizationID string
	ProjectID      string
	APIKeyID       string
}

// BatchResult reports the outcome of a batch ingest
type BatchResult struct {
	Accepted    int
	Quarantined int
	EventIDs    []string
}

// EventService represents event service
type EventService struct {
	channels      repository.ChannelRepository
	organizations repository.OrganizationRepository
	events        repository.EventRepository
	identities    repository.IdentityRepository
	cache         *cache.Cache
	fanout        FanOut
	now           func() time.Time
	log           *zap.Logger
}

// NewEventService creates a new event service. cache may be nil, in which
// case reads go straight to the event store.
func NewEventService(
	channels repository.ChannelRepository,
	organizations repository.OrganizationRepository,
	events repository.EventRepository,
	identities repository.IdentityRepository,
	c *cache.Cache,
	fanout FanOut,
	log *zap.Logger,
) *EventService {
	return &EventService{
		channels:      channels,
		organizations: organizations,
		events:        events,
		identities:    identities,
		cache:         c,
		fanout:        fanout,
		now:           time.Now,
		log:           log,
	}
}

// CreateEvent stores one event and schedules its fan-out. The channel is
// created on first use.
func (s *EventService) CreateEvent(ctx context.Context, principal Principal, req *dto.CreateEventRequest) (*domain.Event, *domain.Channel, error) {
	log := logger.FromContext(ctx, s.log)

	name, err := validateEventRequest(req, "")
	if err != nil {
		return nil, nil, err
	}

	channel, err := s.channels.GetOrCreate(ctx, repository.ChannelSpec{
		Name:           name,
		ProjectID:      principal.ProjectID,
		OrganizationID: principal.OrganizationID,
		Icon:           req.Icon,
		Description:    req.Description,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve channel %q: %w", name, err)
	}

	tiers, err := s.retentionTiers(ctx, principal.OrganizationID)
	if err != nil {
		return nil, nil, err
	}

	event := s.newEvent(principal, channel, req, tiers[principal.OrganizationID])
	event.UserID = s.resolveUser(ctx, principal.OrganizationID, req.UserID)

	result, err := s.events.Insert(ctx, []*domain.Event{event})
	if err != nil {
		metrics.EventsIngestedTotal.WithLabelValues(string(event.Source), "failed").Inc()
		return nil, nil, fmt.Errorf("failed to write event: %w", err)
	}
	if result.SuccessfulRows == 0 {
		metrics.EventsIngestedTotal.WithLabelValues(string(event.Source), "quarantined").Inc()
		log.Error("Event store accepted no rows",
			zap.String("event_id", event.ID),
			zap.Int("quarantined", result.QuarantinedRows))
		return nil, nil, fmt.Errorf("%w: %d row(s) quarantined", ErrEventNotPersisted, result.QuarantinedRows)
	}
	metrics.EventsIngestedTotal.WithLabelValues(string(event.Source), "accepted").Inc()

	s.fanout.Dispatch(ctx, event)

	log.Info("Event created",
		zap.String("event_id", event.ID),
		zap.String("channel_id", channel.ID),
		zap.String("organization_id", event.OrganizationID))

	return event, channel, nil
}

// CreateEventBatch stores many events with one batched channel resolution and
// one write. Quarantined rows are reported, never failed, even when no row was
// accepted.
func (s *EventService) CreateEventBatch(ctx context.Context, principal Principal, reqs []dto.CreateEventRequest) (*BatchResult, error) {
	log := logger.FromContext(ctx, s.log)

	verr := &ValidationError{}
	names := make([]string, len(reqs))
	for i := range reqs {
		name, err := validateEventRequest(&reqs[i], fmt.Sprintf("events[%d].", i))
		if err != nil {
			verr.Issues = append(verr.Issues, err.(*ValidationError).Issues...)
			continue
		}
		names[i] = name
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	specs := make([]repository.ChannelSpec, 0, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		specs = append(specs, repository.ChannelSpec{
			Name:           name,
			ProjectID:      principal.ProjectID,
			OrganizationID: principal.OrganizationID,
			Icon:           reqs[i].Icon,
			Description:    reqs[i].Description,
		})
	}
	channels, err := s.channels.GetOrCreateMany(ctx, principal.OrganizationID, principal.ProjectID, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve channels: %w", err)
	}

	tiers, err := s.retentionTiers(ctx, principal.OrganizationID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]string)
	events := make([]*domain.Event, len(reqs))
	for i := range reqs {
		event := s.newEvent(principal, channels[names[i]], &reqs[i], tiers[principal.OrganizationID])
		if subject := reqs[i].UserID; subject != "" {
			userID, ok := resolved[subject]
			if !ok {
				userID = s.resolveUser(ctx, principal.OrganizationID, subject)
				resolved[subject] = userID
			}
			event.UserID = userID
		}
		events[i] = event
	}

	result, err := s.events.Insert(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("failed to write event batch: %w", err)
	}
	switch {
	case result.SuccessfulRows == 0:
		log.Error("Event store accepted no rows from batch",
			zap.Int("submitted", len(events)),
			zap.Int("quarantined", result.QuarantinedRows))
	case result.QuarantinedRows > 0:
		log.Warn("Some batch events were quarantined",
			zap.Int("accepted", result.SuccessfulRows),
			zap.Int("quarantined", result.QuarantinedRows),
			zap.Strings("quarantined_ids", result.QuarantinedIDs))
	}

	quarantined := make(map[string]bool, len(result.QuarantinedIDs))
	for _, id := range result.QuarantinedIDs {
		quarantined[id] = true
	}
	noneAccepted := result.SuccessfulRows == 0

	batch := &BatchResult{
		Accepted:    result.SuccessfulRows,
		Quarantined: result.QuarantinedRows,
		EventIDs:    make([]string, 0, result.SuccessfulRows),
	}
	for _, event := range events {
		if noneAccepted || quarantined[event.ID] {
			metrics.EventsIngestedTotal.WithLabelValues(string(event.Source), "quarantined").Inc()
			continue
		}
		metrics.EventsIngestedTotal.WithLabelValues(string(event.Source), "accepted").Inc()
		batch.EventIDs = append(batch.EventIDs, event.ID)
		s.fanout.Dispatch(ctx, event)
	}

	log.Info("Event batch created",
		zap.Int("accepted", batch.Accepted),
		zap.Int("quarantined", batch.Quarantined),
		zap.Int("channels", len(channels)))

	return batch, nil
}

// Channel returns the channel if it belongs to the organization.
func (s *EventService) Channel(ctx context.Context, organizationID, channelID string) (*domain.Channel, error) {
	channel, err := s.channels.GetByID(ctx, organizationID, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return channel, nil
}

// ListEvents returns a page of a channel's events, newest first. Callers
// check channel ownership first.
func (s *EventService) ListEvents(ctx context.Context, organizationID, channelID string, page, limit int) (*repository.EventPage, error) {
	page, limit = normalizePage(page, limit)

	key := cache.ChannelListKey(channelID)
	if page != 1 || limit != MaxPageLimit {
		key = cache.GenerateKey("events:channel", map[string]any{
			"channelId": channelID,
			"orgId":     organizationID,
			"page":      page,
			"limit":     limit,
		})
	}

	return cache.WithCache(ctx, s.cache, key, cache.ListTTL, func(ctx context.Context) (*repository.EventPage, error) {
		return s.events.List(ctx, repository.ListQuery{
			OrganizationID: organizationID,
			ChannelID:      channelID,
			Limit:          limit,
			Offset:         (page - 1) * limit,
		})
	})
}

// ListOrganizationEvents returns a page of events across the organization,
// optionally narrowed to one project.
func (s *EventService) ListOrganizationEvents(ctx context.Context, organizationID, projectID string, page, limit int) (*repository.EventPage, error) {
	page, limit = normalizePage(page, limit)

	key := cache.OrganizationListKey(organizationID)
	if projectID != "" || page != 1 || limit != MaxPageLimit {
		key = cache.GenerateKey("events:org", map[string]any{
			"orgId":     organizationID,
			"projectId": projectID,
			"page":      page,
			"limit":     limit,
		})
	}

	return cache.WithCache(ctx, s.cache, key, cache.ListTTL, func(ctx context.Context) (*repository.EventPage, error) {
		return s.events.List(ctx, repository.ListQuery{
			OrganizationID: organizationID,
			ProjectID:      projectID,
			Limit:          limit,
			Offset:         (page - 1) * limit,
		})
	})
}

// EventsAfter returns channel events created strictly after since. The
// query runs from the start of since's bucket so concurrent pollers share
// one cache entry.
func (s *EventService) EventsAfter(ctx context.Context, organizationID, channelID string, since time.Time, limit int) ([]*domain.Event, error) {
	if limit < 1 || limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	bucket := cache.RealtimeSince(since)
	key := cache.GenerateKey("events:realtime", map[string]any{
		"channelId": channelID,
		"orgId":     organizationID,
		"since":     bucket,
		"limit":     limit,
	})

	events, err := cache.WithCache(ctx, s.cache, key, cache.RealtimeTTL, func(ctx context.Context) ([]*domain.Event, error) {
		return s.events.After(ctx, organizationID, channelID, time.UnixMilli(bucket).UTC(), limit)
	})
	if err != nil {
		return nil, err
	}
	return newerThan(events, since), nil
}

// Stats aggregates events for an organization or one of its channels. The
// unbounded view of each scope uses its fixed key.
func (s *EventService) Stats(ctx context.Context, organizationID, channelID string, from, to *time.Time) (*repository.EventStats, error) {
	if from != nil && to != nil && from.After(*to) {
		verr := &ValidationError{}
		verr.add("from", "from must be before to")
		return nil, verr
	}

	var key string
	switch {
	case from == nil && to == nil && channelID != "":
		key = cache.ChannelStatsKey(channelID)
	case from == nil && to == nil:
		key = cache.OrganizationStatsKey(organizationID)
	default:
		key = cache.GenerateKey("events:stats", map[string]any{
			"orgId":     organizationID,
			"channelId": channelID,
			"from":      unixMilliOrEmpty(from),
			"to":        unixMilliOrEmpty(to),
		})
	}

	return cache.WithCache(ctx, s.cache, key, cache.StatsTTL, func(ctx context.Context) (*repository.EventStats, error) {
		return s.events.Stats(ctx, repository.StatsQuery{
			OrganizationID: organizationID,
			ChannelID:      channelID,
			From:           from,
			To:             to,
		})
	})
}

func (s *EventService) GetEvent(ctx context.Context, organizationID, eventID string) (*domain.Event, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event.OrganizationID != organizationID {
		return nil, fmt.Errorf("failed to get event: %w", repository.ErrEventNotFound)
	}
	return event, nil
}

// DeleteEvent permanently removes an event after checking the channel
// belongs to the organization, then drops the affected cached views.
func (s *EventService) DeleteEvent(ctx context.Context, organizationID, channelID, eventID string) error {
	if _, err := s.channels.GetByID(ctx, organizationID, channelID); err != nil {
		return fmt.Errorf("failed to verify channel ownership: %w", err)
	}

	if err := s.events.Delete(ctx, organizationID, channelID, eventID); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateChannel(ctx, channelID)
		s.cache.InvalidateOrganization(ctx, organizationID)
	}

	logger.FromContext(ctx, s.log).Info("Event deleted",
		zap.String("event_id", eventID),
		zap.String("channel_id", channelID))
	return nil
}

func (s *EventService) newEvent(principal Principal, channel *domain.Channel, req *dto.CreateEventRequest, tier domain.RetentionTier) *domain.Event {
	event := &domain.Event{
		ChannelID:      channel.ID,
		ProjectID:      channel.ProjectID,
		OrganizationID: principal.OrganizationID,
		RetentionTier:  tier,
		Title:          req.Title,
		Description:    req.Description,
		Icon:           req.Icon,
		Tags:           req.Tags,
		Metadata:       req.Metadata,
		Notify:         req.NotifyOrDefault(),
		Source:         domain.Source(req.Source),
	}
	event.Normalize(s.now())
	return event
}

func (s *EventService) retentionTiers(ctx context.Context, organizationID string) (map[string]domain.RetentionTier, error) {
	tiers, err := s.organizations.RetentionTiers(ctx, []string{organizationID})
	if err != nil {
		return nil, fmt.Errorf("failed to load retention tier: %w", err)
	}
	if _, ok := tiers[organizationID]; !ok {
		return nil, fmt.Errorf("failed to load retention tier for %s: %w", organizationID, repository.ErrOrganizationNotFound)
	}
	return tiers, nil
}

// resolveUser maps an external subject to its canonical user id. Unknown
// subjects and lookup failures pass through unchanged.
func (s *EventService) resolveUser(ctx context.Context, organizationID, subject string) string {
	if subject == "" || s.identities == nil {
		return subject
	}
	userID, found, err := s.identities.ResolveAlias(ctx, organizationID, subject)
	if err != nil {
		logger.FromContext(ctx, s.log).Warn("Failed to resolve user alias",
			zap.String("organization_id", organizationID),
			zap.Error(err))
		return subject
	}
	if !found || userID == "" {
		return subject
	}
	return userID
}

// validateEventRequest returns the channel slug, or a ValidationError with
// field names prefixed by prefix.
func validateEventRequest(req *dto.CreateEventRequest, prefix string) (string, error) {
	verr := &ValidationError{}

	name := slug.Make(req.ChannelName)
	if name == "" {
		verr.add(prefix+"channelName", "channelName must contain at least one letter or digit")
	}
	if req.Title == "" {
		verr.add(prefix+"title", "title is required")
	}
	if req.Source != "" && !domain.ValidSource(domain.Source(req.Source)) {
		verr.add(prefix+"source", "source must be one of api, webhook, command")
	}

	return name, verr.orNil()
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func newerThan(events []*domain.Event, since time.Time) []*domain.Event {
	out := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if e.CreatedAt.After(since) {
			out = append(out, e)
		}
	}
	return out
}

func unixMilliOrEmpty(t *time.Time) any {
	if t == nil {
		return ""
	}
	return t.UnixMilli()
}
