package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies how an event entered the platform
type Source string

const (
	SourceAPI     Source = "api"
	SourceWebhook Source = "webhook"
	SourceCommand Source = "command"
)

// RetentionTier governs how long an organization's data is kept
type RetentionTier string

const (
	RetentionBasic     RetentionTier = "basic"
	RetentionPremium   RetentionTier = "premium"
	RetentionUnlimited RetentionTier = "unlimited"
)

const DisplayCard = "card"

// Event is an immutable record of something that happened in a tenant's channel
type Event struct {
	ID             string         `json:"id"`
	ChannelID      string         `json:"channelId"`
	ProjectID      string         `json:"projectId"`
	OrganizationID string         `json:"organizationId"`
	RetentionTier  RetentionTier  `json:"retentionTier,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Icon           string         `json:"icon,omitempty"`
	Tags           []string       `json:"tags"`
	Metadata       map[string]any `json:"metadata"`
	UserID         string         `json:"userId,omitempty"`
	Notify         bool           `json:"notify"`
	DisplayAs      string         `json:"displayAs,omitempty"`
	Source         Source         `json:"source"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Normalize fills the defaults a stored event must carry.
func (e *Event) Normalize(now time.Time) {
	if e.ID == "" {
		e.ID = NewID("event")
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if e.Source == "" {
		e.Source = SourceAPI
	}
	if e.DisplayAs == "" {
		e.DisplayAs = DisplayCard
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
}

// ValidSource reports whether s is a known event source.
func ValidSource(s Source) bool {
	switch s {
	case SourceAPI, SourceWebhook, SourceCommand:
		return true
	}
	return false
}

// ValidRetentionTier reports whether t is a known retention tier.
func ValidRetentionTier(t RetentionTier) bool {
	switch t {
	case RetentionBasic, RetentionPremium, RetentionUnlimited:
		return true
	}
	return false
}

// NewID returns a prefixed, time-ordered identifier such as event_01890a5d...
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return prefix + "_" + strings.ReplaceAll(id.String(), "-", "")
}
