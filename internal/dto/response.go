package dto

import "time"

// SuccessResponse wraps every successful API payload
type SuccessResponse struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data"`
	RequestID string `json:"requestId,omitempty"`
}

// FieldIssue describes one invalid request field
type FieldIssue struct {
	Field   string `json:"field" example:"channelName"`
	Message string `json:"message" example:"channelName is required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success   bool         `json:"success"`
	Error     string       `json:"error" example:"Validation error"`
	Message   string       `json:"message,omitempty"`
	Details   []FieldIssue `json:"details,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

// UnauthorizedResponse is returned when credentials are missing or invalid
type UnauthorizedResponse struct {
	Error   string `json:"error" example:"Unauthorized"`
	Message string `json:"message" example:"Invalid or missing authentication credentials"`
}

// CreateEventResponse acknowledges a stored event
type CreateEventResponse struct {
	ID          string    `json:"id"`
	ChannelID   string    `json:"channelId"`
	ChannelName string    `json:"channelName"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateEventBatchResponse reports the outcome of a batch ingest
type CreateEventBatchResponse struct {
	Accepted    int      `json:"accepted" example:"5"`
	Quarantined int      `json:"quarantined" example:"0"`
	EventIDs    []string `json:"eventIds"`
}

// IdentifyAliases lists the aliases recorded by an identify call
type IdentifyAliases struct {
	Created []string `json:"created"`
}

// IdentifyResponse represents a stored user identity
type IdentifyResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Properties map[string]any  `json:"properties"`
	Aliases    IdentifyAliases `json:"aliases"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// StreamMessage is one server-sent event frame
type StreamMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}
