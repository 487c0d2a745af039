package dto

// CreateEventRequest represents an ingest event request
type CreateEventRequest struct {
	ChannelName string         `json:"channelName" binding:"required,max=100" example:"deploys"`
	Title       string         `json:"title" binding:"required,max=500" example:"v1.2 released"`
	Description string         `json:"description" binding:"max=5000" example:"Rolled out to all regions"`
	Icon        string         `json:"icon" binding:"max=50" example:"🚀"`
	Tags        []string       `json:"tags" example:"release,backend"`
	Metadata    map[string]any `json:"metadata"`
	UserID      string         `json:"userId" binding:"max=255" example:"user_123"`
	// Notify defaults to true when omitted.
	Notify *bool  `json:"notify"`
	Source string `json:"source" binding:"omitempty,oneof=api webhook command" example:"api"`
}

// NotifyOrDefault returns the notify flag, true when unset.
func (r *CreateEventRequest) NotifyOrDefault() bool {
	return r.Notify == nil || *r.Notify
}

// CreateEventBatchRequest represents a batch ingest request
type CreateEventBatchRequest struct {
	Events []CreateEventRequest `json:"events" binding:"required,min=1,max=1000,dive"`
}

// IdentifyRequest represents an identify user request
type IdentifyRequest struct {
	UserID     string         `json:"user_id" binding:"required,min=1" example:"user_123"`
	Properties map[string]any `json:"properties"`
	Aliases    []string       `json:"aliases" binding:"omitempty,dive,min=1" example:"anon_42"`
}

// ListEventsRequest represents list query parameters
type ListEventsRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1" example:"1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100" example:"20"`
}

// StatsRequest represents stats query parameters. From and To are RFC 3339.
type StatsRequest struct {
	ChannelID string `form:"channelId" example:"channel_0190"`
	From      string `form:"from" example:"2025-01-01T00:00:00Z"`
	To        string `form:"to" example:"2025-02-01T00:00:00Z"`
}

// CreateWebhookRequest represents a webhook registration
type CreateWebhookRequest struct {
	ChannelID string   `json:"channelId" binding:"required"`
	URL       string   `json:"url" binding:"required,url,max=2048" example:"https://hooks.example.com/emitkit"`
	Secret    string   `json:"secret" binding:"max=256"`
	Events    []string `json:"events" example:"all"`
}

// PushKeys are the client keys of a browser push subscription
type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// PushSubscribeRequest represents a push subscription registration
type PushSubscribeRequest struct {
	Endpoint   string   `json:"endpoint" binding:"required,url"`
	Keys       PushKeys `json:"keys" binding:"required"`
	ChannelIDs []string `json:"channelIds"`
}

// PushUnsubscribeRequest removes a push subscription by endpoint
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}
