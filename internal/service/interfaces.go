package service

import (
	"context"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/repository"
)

// EventServicer defines the interface for event service operations
type EventServicer interface {
	CreateEvent(ctx context.Context, principal Principal, req *dto.CreateEventRequest) (*domain.Event, *domain.Channel, error)
	CreateEventBatch(ctx context.Context, principal Principal, reqs []dto.CreateEventRequest) (*BatchResult, error)
	Channel(ctx context.Context, organizationID, channelID string) (*domain.Channel, error)
	ListEvents(ctx context.Context, organizationID, channelID string, page, limit int) (*repository.EventPage, error)
	ListOrganizationEvents(ctx context.Context, organizationID, projectID string, page, limit int) (*repository.EventPage, error)
	EventsAfter(ctx context.Context, organizationID, channelID string, since time.Time, limit int) ([]*domain.Event, error)
	Stats(ctx context.Context, organizationID, channelID string, from, to *time.Time) (*repository.EventStats, error)
	GetEvent(ctx context.Context, organizationID, eventID string) (*domain.Event, error)
	DeleteEvent(ctx context.Context, organizationID, channelID, eventID string) error
}

// IdentityServicer defines the interface for identity operations
type IdentityServicer interface {
	Identify(ctx context.Context, organizationID string, req *dto.IdentifyRequest) (*domain.UserIdentity, error)
}

// FanOut runs the side effects of a stored event without blocking
type FanOut interface {
	Dispatch(ctx context.Context, event *domain.Event)
}
