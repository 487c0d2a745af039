// Package push delivers browser push notifications.
package push

import (
	"context"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
)

// Sender delivers one payload to one subscription and reports the push
// service's HTTP status.
type Sender interface {
	Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error)
}

// WebPushSender signs requests with VAPID keys
type WebPushSender struct {
	options webpush.Options
}

// NewWebPushSender creates a sender. client may be nil.
func NewWebPushSender(cfg config.Push, client *http.Client) *WebPushSender {
	opts := webpush.Options{
		Subscriber:      cfg.VAPIDSubject,
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		TTL:             cfg.TTLSec,
		Urgency:         webpush.UrgencyNormal,
	}
	if client != nil {
		opts.HTTPClient = client
	}
	return &WebPushSender{options: opts}
}

func (s *WebPushSender) Send(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error) {
	opts := s.options
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &opts)
	if err != nil {
		return 0, fmt.Errorf("failed to send push notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	return resp.StatusCode, nil
}
