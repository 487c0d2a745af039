package consumer

import (
	"context"

	"github.com/emitkithq/emitkit/internal/domain"
)

// Envelope carries a workflow trigger together with the callbacks that
// settle its queue message
type Envelope struct {
	Workflow  *domain.EventWorkflow
	MessageID string
	// RequestID is the id of the API request that stored the event, if sent.
	RequestID string
	ack       func(context.Context) error
	nack      func(context.Context) error
}

func NewEnvelope(wf *domain.EventWorkflow, messageID string, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		Workflow:  wf,
		MessageID: messageID,
		ack:       ack,
		nack:      nack,
	}
}

// Ack removes the message from the queue
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack != nil {
		return e.ack(ctx)
	}
	return nil
}

// Nack returns the message to the queue for another attempt
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack != nil {
		return e.nack(ctx)
	}
	return nil
}
