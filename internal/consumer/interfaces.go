package consumer

import (
	"context"

	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/workflow"
)

// MessageParser decodes a raw queue message into a workflow trigger
type MessageParser interface {
	Parse(body []byte) (*domain.EventWorkflow, error)
}

// WorkflowRunner executes one workflow trigger
type WorkflowRunner interface {
	Run(ctx context.Context, wf *domain.EventWorkflow) (workflow.Summary, error)
}
