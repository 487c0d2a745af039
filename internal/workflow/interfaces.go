package workflow

import (
	"context"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/push"
	"github.com/emitkithq/emitkit/internal/webhook"
)

// EventLoader reads the stored event a workflow refers to
type EventLoader interface {
	GetByID(ctx context.Context, eventID string) (*domain.Event, error)
}

type WebhookLister interface {
	ListEnabledByChannel(ctx context.Context, channelID string) ([]*domain.Webhook, error)
}

type WebhookDispatcher interface {
	Dispatch(ctx context.Context, webhooks []*domain.Webhook, event *domain.Event) webhook.Result
}

type PushNotifier interface {
	SendToChannels(ctx context.Context, organizationID string, channelIDs []string, n push.Notification) (push.Result, error)
}

// SecretDecrypter opens webhook secrets sealed at registration
type SecretDecrypter interface {
	Decrypt(encoded string) (string, error)
}
