package service

import (
	"errors"
	"strings"

	"github.com/emitkithq/emitkit/internal/dto"
)

// ErrEventNotPersisted is returned when the event store accepted no rows
var ErrEventNotPersisted = errors.New("event was not persisted")

// ValidationError carries field-level issues for a rejected request
type ValidationError struct {
	Issues []dto.FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Issues = append(e.Issues, dto.FieldIssue{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Issues) == 0 {
		return nil
	}
	return e
}
