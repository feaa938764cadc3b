// Package apierr defines the error kinds surfaced by the HTTP API and the single
// place where they are mapped onto status codes and JSON bodies.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Subash107/control-ops-local1/pkg/controlops/logging"
)

// Error codes carried in the "error" field of every error body
const (
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeDuplicate    = "duplicate"
	CodeValidation   = "validation"
	CodeInternal     = "internal"
)

// AuthenticationError is a missing, invalid, expired or wrong-kind credential
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// AuthorizationError is an authenticated caller lacking the required role
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string { return e.Message }

// NotFoundError is a reference to an entity that does not exist
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// DuplicateError is a uniqueness conflict on a named field
type DuplicateError struct {
	Field   string
	Message string
}

func (e *DuplicateError) Error() string { return e.Message }

// ValidationError is malformed or out-of-range input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unauthorized returns an AuthenticationError
func Unauthorized(message string) error {
	return &AuthenticationError{Message: message}
}

// Forbidden returns an AuthorizationError
func Forbidden(message string) error {
	return &AuthorizationError{Message: message}
}

// NotFound returns a NotFoundError for resource
func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

// Duplicate returns a DuplicateError for field
func Duplicate(field, message string) error {
	return &DuplicateError{Field: field, Message: message}
}

// Invalid returns a ValidationError for field
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Body is the JSON shape of every error response
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Status maps err onto an HTTP status and response body.
func Status(err error) (int, Body) {
	var (
		authnErr *AuthenticationError
		authzErr *AuthorizationError
		nfErr    *NotFoundError
		dupErr   *DuplicateError
		valErr   *ValidationError
	)
	switch {
	case errors.As(err, &authnErr):
		return http.StatusUnauthorized, Body{Error: CodeUnauthorized, Message: authnErr.Message}
	case errors.As(err, &authzErr):
		return http.StatusForbidden, Body{Error: CodeForbidden, Message: authzErr.Message}
	case errors.As(err, &nfErr):
		return http.StatusNotFound, Body{Error: CodeNotFound, Message: nfErr.Error()}
	case errors.As(err, &dupErr):
		return http.StatusConflict, Body{Error: CodeDuplicate, Message: dupErr.Message, Field: dupErr.Field}
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, Body{Error: CodeValidation, Message: valErr.Message, Field: valErr.Field}
	default:
		return http.StatusInternalServerError, Body{Error: CodeInternal, Message: "Internal server error"}
	}
}

// Respond writes the response for err and aborts the handler chain.
// Unclassified errors are logged and reported to sentry; their text never reaches the client.
func Respond(c *gin.Context, err error) {
	status, body := Status(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		logging.FromContext(c).Error("request failed", zap.Error(err))
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
	}
	c.AbortWithStatusJSON(status, body)
}
