package repository

import (
	"context"
	"errors"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrChannelNotFound      = errors.New("channel not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrAPIKeyNotFound       = errors.New("api key not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrIdentityNotFound     = errors.New("user identity not found")
)

// IngestResult reports how many rows of a write were accepted
type IngestResult struct {
	SuccessfulRows  int
	QuarantinedRows int
	QuarantinedIDs  []string
}

// ListQuery selects a page of events. ChannelID and ProjectID are optional filters.
type ListQuery struct {
	OrganizationID string
	ProjectID      string
	ChannelID      string
	Limit          int
	Offset         int
}

// EventPage is one page of events plus the total matching count
type EventPage struct {
	Items []*domain.Event `json:"items"`
	Total uint64          `json:"total"`
}

// StatsQuery represents aggregate stats query parameters
type StatsQuery struct {
	OrganizationID string
	ChannelID      string
	From           *time.Time
	To             *time.Time
}

// EventStats is the aggregated view over a set of events
type EventStats struct {
	TotalEvents      uint64            `json:"total_events"`
	UniqueUsers      uint64            `json:"unique_users"`
	TagsDistribution map[string]uint64 `json:"tags_distribution"`
}

// EventRepository defines the interface for event storage operations
type EventRepository interface {
	// InitSchema creates the event tables if they don't exist
	InitSchema(ctx context.Context) error

	// Insert writes events; rows that fail validation are quarantined, not inserted
	Insert(ctx context.Context, events []*domain.Event) (IngestResult, error)

	List(ctx context.Context, query ListQuery) (*EventPage, error)

	// After returns up to limit channel events created after since, oldest first
	After(ctx context.Context, organizationID, channelID string, since time.Time, limit int) ([]*domain.Event, error)

	GetByID(ctx context.Context, eventID string) (*domain.Event, error)

	Stats(ctx context.Context, query StatsQuery) (*EventStats, error)

	// Delete permanently removes an event owned by the channel and organization
	Delete(ctx context.Context, organizationID, channelID, eventID string) error

	DeleteByProject(ctx context.Context, organizationID, projectID string) error

	Ping(ctx context.Context) error
	Close() error
}

// IdentityRepository stores user identities and their aliases
type IdentityRepository interface {
	UpsertIdentity(ctx context.Context, identity *domain.UserIdentity) error
	GetIdentity(ctx context.Context, organizationID, userID string) (*domain.UserIdentity, error)

	// ResolveAlias maps a user id or alias to the canonical user id
	ResolveAlias(ctx context.Context, organizationID, alias string) (userID string, found bool, err error)
}

// ChannelSpec describes a channel to look up or create
type ChannelSpec struct {
	Name           string
	ProjectID      string
	OrganizationID string
	Icon           string
	Description    string
}

// ChannelRepository is the channel directory
type ChannelRepository interface {
	// GetOrCreate returns the live channel with spec.Name in the project, creating it if absent
	GetOrCreate(ctx context.Context, spec ChannelSpec) (*domain.Channel, error)

	// GetOrCreateMany resolves all specs of one project in a single round of
	// statements, keyed by channel name
	GetOrCreateMany(ctx context.Context, organizationID, projectID string, specs []ChannelSpec) (map[string]*domain.Channel, error)

	GetByID(ctx context.Context, organizationID, channelID string) (*domain.Channel, error)
}

type OrganizationRepository interface {
	// RetentionTiers returns the tier of every known organization in ids
	RetentionTiers(ctx context.Context, ids []string) (map[string]domain.RetentionTier, error)
}

// PurgeCounts reports rows removed when a project is hard-deleted
type PurgeCounts struct {
	Channels int64
	Webhooks int64
	APIKeys  int64
}

type ProjectRepository interface {
	GetByID(ctx context.Context, organizationID, projectID string) (*domain.Project, error)

	// ListPurgeable returns soft-deleted projects of tier deleted before cutoff
	ListPurgeable(ctx context.Context, tier domain.RetentionTier, cutoff time.Time) ([]*domain.Project, error)

	// Purge hard-deletes the project and everything that references it
	Purge(ctx context.Context, projectID string) (PurgeCounts, error)
}

type WebhookRepository interface {
	Create(ctx context.Context, webhook *domain.Webhook) error
	ListEnabledByChannel(ctx context.Context, channelID string) ([]*domain.Webhook, error)
}

type PushSubscriptionRepository interface {
	// Upsert stores a subscription keyed by its endpoint
	Upsert(ctx context.Context, sub *domain.PushSubscription) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByEndpoint(ctx context.Context, userID, endpoint string) error
	ListByUsers(ctx context.Context, userIDs []string) ([]*domain.PushSubscription, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.PushSubscription, error)
}

type APIKeyRepository interface {
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
}

type SessionRepository interface {
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
}
