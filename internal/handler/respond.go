package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/emitkithq/emitkit/internal/auth"
	"github.com/emitkithq/emitkit/internal/dto"
	"github.com/emitkithq/emitkit/internal/logger"
	"github.com/emitkithq/emitkit/internal/repository"
	"github.com/emitkithq/emitkit/internal/service"
)

var fieldNamesOnce sync.Once

// registerFieldNames makes validation errors report the wire names of
// fields (json, then form) instead of Go struct field names.
func registerFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
	})
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, dto.SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}

func validationFailed(c *gin.Context, issues []dto.FieldIssue) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Error:     "Validation error",
		Details:   issues,
		RequestID: logger.RequestID(c.Request.Context()),
	})
}

// respondError maps service errors onto the response envelope. fallback is
// the message used for unexpected failures.
func respondError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		validationFailed(c, verr.Issues)
	case errors.Is(err, auth.ErrUnauthorized):
		abortUnauthorized(c)
	case errors.Is(err, repository.ErrChannelNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:     "Not found",
			RequestID: logger.RequestID(c.Request.Context()),
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:     fallback,
			RequestID: logger.RequestID(c.Request.Context()),
		})
	}
}

// bindingIssues converts a gin binding error into field issues.
func bindingIssues(err error) []dto.FieldIssue {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		issues := make([]dto.FieldIssue, 0, len(verrs))
		for _, fe := range verrs {
			field := fieldPath(fe.Namespace())
			issues = append(issues, dto.FieldIssue{Field: field, Message: issueMessage(field, fe)})
		}
		return issues
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return []dto.FieldIssue{{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type.String()),
		}}
	}

	return []dto.FieldIssue{{Field: "body", Message: "request body is not valid JSON"}}
}

// fieldPath drops the struct name from a validator namespace such as
// CreateEventBatchRequest.events[2].title.
func fieldPath(namespace string) string {
	_, path, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return path
}

func issueMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
