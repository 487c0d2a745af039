package stream

import (
	"context"
	"time"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

// EventSource is the cached read path the pollers query
type EventSource interface {
	EventsAfter(ctx context.Context, organizationID, channelID string, since time.Time, limit int) ([]*domain.Event, error)
	ListOrganizationEvents(ctx context.Context, organizationID, projectID string, page, limit int) (*repository.EventPage, error)
}

// ChannelPoller polls one channel for events newer than since.
func ChannelPoller(src EventSource, organizationID, channelID string) Poller {
	return func(ctx context.Context, since time.Time) ([]*domain.Event, error) {
		return src.EventsAfter(ctx, organizationID, channelID, since, DefaultLimit)
	}
}

// OrganizationPoller reads the recent organization list and keeps the events
// newer than since, oldest first.
func OrganizationPoller(src EventSource, organizationID string) Poller {
	return func(ctx context.Context, since time.Time) ([]*domain.Event, error) {
		page, err := src.ListOrganizationEvents(ctx, organizationID, "", 1, DefaultLimit)
		if err != nil {
			return nil, err
		}

		// The list is newest first.
		events := make([]*domain.Event, 0, len(page.Items))
		for i := len(page.Items) - 1; i >= 0; i-- {
			if page.Items[i].CreatedAt.After(since) {
				events = append(events, page.Items[i])
			}
		}
		return events, nil
	}
}
