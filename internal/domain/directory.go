package domain

import "time"

// Channel is a named subdivision of a project
type Channel struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	OrganizationID string     `json:"organizationId"`
	Name           string     `json:"name"`
	Icon           string     `json:"icon,omitempty"`
	Description    string     `json:"description,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// Organization is the top-level tenant
type Organization struct {
	ID            string
	Name          string
	RetentionTier RetentionTier
}

// Project groups channels under an organization
type Project struct {
	ID             string
	OrganizationID string
	Name           string
	DeletedAt      *time.Time
	RetentionTier  RetentionTier
}

// Webhook is a tenant-configured endpoint bound to a channel
type Webhook struct {
	ID             string    `json:"id"`
	ChannelID      string    `json:"channelId"`
	OrganizationID string    `json:"organizationId"`
	URL            string    `json:"url"`
	Secret         string    `json:"-"`
	Events         []string  `json:"events"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"createdAt"`
}

const WebhookEventAll = "all"

// Accepts reports whether the webhook's event filter admits eventType.
func (w Webhook) Accepts(eventType string) bool {
	if len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == WebhookEventAll || e == eventType {
			return true
		}
	}
	return false
}

// PushSubscription is a browser push endpoint owned by a user
type PushSubscription struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OrganizationID string    `json:"organizationId"`
	Endpoint       string    `json:"endpoint"`
	P256dhKey      string    `json:"p256dh"`
	AuthKey        string    `json:"auth"`
	ChannelIDs     []string  `json:"channelIds"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MatchesAny reports whether the subscription wants any of channelIDs.
// An empty channel list subscribes to every channel.
func (s PushSubscription) MatchesAny(channelIDs []string) bool {
	if len(s.ChannelIDs) == 0 {
		return true
	}
	for _, want := range channelIDs {
		for _, have := range s.ChannelIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}

// UserIdentity maps an external user id and its aliases to profile data
type UserIdentity struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	UserID         string         `json:"userId"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Properties     map[string]any `json:"properties"`
	Aliases        []string       `json:"aliases"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// APIKey authenticates server-to-server calls for one project
type APIKey struct {
	ID             string
	OrganizationID string
	ProjectID      string
	Name           string
	// RateLimit is requests per minute, 0 means the configured default.
	RateLimit int
	Enabled   bool
	ExpiresAt *time.Time
}

// Usable reports whether the key may authenticate a request at now.
func (k APIKey) Usable(now time.Time) bool {
	if !k.Enabled {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// Session is a signed-in dashboard user scoped to their active organization
type Session struct {
	Token                string
	UserID               string
	ActiveOrganizationID string
	Role                 string
	ExpiresAt            time.Time
}
