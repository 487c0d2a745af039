// Package webhook delivers events to tenant endpoints.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/emitkithq/emitkit/internal/domain"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	timestampFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Payload is the fixed projection of an event sent to webhooks
type Payload struct {
	EventID     string         `json:"event_id"`
	ChannelID   string         `json:"channel_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Tags        []string       `json:"tags"`
	Metadata    map[string]any `json:"metadata"`
	UserID      string         `json:"user_id"`
	CreatedAt   string         `json:"created_at"`
}

func NewPayload(e *domain.Event) Payload {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	metadata := e.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Payload{
		EventID:     e.ID,
		ChannelID:   e.ChannelID,
		Title:       e.Title,
		Description: e.Description,
		Icon:        e.Icon,
		Tags:        tags,
		Metadata:    metadata,
		UserID:      e.UserID,
		CreatedAt:   e.CreatedAt.UTC().Format(timestampFormat),
	}
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the signature of body under secret.
func Verify(secret string, body []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}
