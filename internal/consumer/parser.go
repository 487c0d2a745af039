package consumer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/emitkithq/emitkit/internal/domain"
)

// JSONWorkflowParser decodes the JSON triggers published by the API
type JSONWorkflowParser struct{}

func NewJSONWorkflowParser() *JSONWorkflowParser {
	return &JSONWorkflowParser{}
}

// Parse decodes body and rejects triggers missing the ids a run needs.
func (p *JSONWorkflowParser) Parse(body []byte) (*domain.EventWorkflow, error) {
	var wf domain.EventWorkflow
	if err := json.Unmarshal(body, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	var missing []error
	if wf.EventID == "" {
		missing = append(missing, errors.New("eventId is required"))
	}
	if wf.ChannelID == "" {
		missing = append(missing, errors.New("channelId is required"))
	}
	if wf.OrganizationID == "" {
		missing = append(missing, errors.New("organizationId is required"))
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("invalid workflow trigger: %w", errors.Join(missing...))
	}

	if wf.Tags == nil {
		wf.Tags = []string{}
	}
	return &wf, nil
}
