package domain

// EventWorkflow is the durable trigger published after an event is stored.
// The workflow worker uses it to run webhook and push delivery.
type EventWorkflow struct {
	EventID        string   `json:"eventId"`
	ChannelID      string   `json:"channelId"`
	OrganizationID string   `json:"organizationId"`
	ProjectID      string   `json:"projectId"`
	Notify         bool     `json:"notify"`
	EventType      string   `json:"eventType"`
	Tags           []string `json:"tags"`
}

// NewEventWorkflow builds the trigger payload for a stored event.
func NewEventWorkflow(e *Event) *EventWorkflow {
	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	return &EventWorkflow{
		EventID:        e.ID,
		ChannelID:      e.ChannelID,
		OrganizationID: e.OrganizationID,
		ProjectID:      e.ProjectID,
		Notify:         e.Notify,
		EventType:      e.Title,
		Tags:           tags,
	}
}
