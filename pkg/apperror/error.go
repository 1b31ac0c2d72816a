package apperror

import (
	"fmt"
	"net/http"
)

// Error is the typed failure used across the engine. Anomalies found by
// checks are data and never travel as an Error.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Is matches any *Error carrying the same code, so derived copies still
// satisfy errors.Is against the sentinel they were made from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

// New creates a new application error
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

var (
	// ErrSchemaLookup is raised for an unknown class or attribute. It aborts
	// only the check that asked.
	ErrSchemaLookup = New(http.StatusUnprocessableEntity, "schema_lookup", "Unknown schema element")

	// ErrQueryExecution covers malformed generated queries and store failures.
	ErrQueryExecution = New(http.StatusBadGateway, "query_execution", "Query execution failed")

	ErrInstanceNotFound = New(http.StatusNotFound, "instance_not_found", "Instance not found")
	ErrInvalidConfig    = New(http.StatusBadRequest, "invalid_config", "Invalid configuration")
	ErrCheckNotFound    = New(http.StatusNotFound, "check_not_found", "Check not found")
	ErrNoRun            = New(http.StatusNotFound, "no_run", "No run has completed yet")
	ErrRunInProgress    = New(http.StatusConflict, "run_in_progress", "A run is already in progress")
	ErrInternal         = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
)

// NewSchemaLookup reports an unknown class, or an unknown attribute when
// attribute is non-empty.
func NewSchemaLookup(class, attribute string) *Error {
	if attribute == "" {
		return ErrSchemaLookup.WithMessage(fmt.Sprintf("unknown class '%s'", class))
	}
	return ErrSchemaLookup.WithMessage(fmt.Sprintf("class '%s' has no attribute '%s'", class, attribute))
}

// NewQueryExecution wraps a store failure together with the query text.
func NewQueryExecution(query string, err error) *Error {
	return ErrQueryExecution.WithInternal(err).WithDetails(map[string]any{"query": query})
}

// NewInvalidConfig creates a configuration error with a custom message
func NewInvalidConfig(message string) *Error {
	return ErrInvalidConfig.WithMessage(message)
}

// ToHTTPError converts an app error to an HTTP-friendly format
func ToHTTPError(err error) (int, map[string]any) {
	if appErr, ok := err.(*Error); ok {
		errBody := map[string]any{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if len(appErr.Details) > 0 {
			errBody["details"] = appErr.Details
		}
		return appErr.HTTPStatus, map[string]any{
			"error": errBody,
		}
	}

	return http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"code":    "internal_error",
			"message": "An internal error occurred",
		},
	}
}
