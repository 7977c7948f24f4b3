package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeNoMatch            = "NO_MATCH"
	ErrCodeUnauthorizedAction = "UNAUTHORIZED_ACTION"
	ErrCodeParameter          = "PARAMETER_ERROR"
	ErrCodeHandler            = "HANDLER_ERROR"
	ErrCodeEmbedding          = "EMBEDDING_ERROR"
	ErrCodeIndex              = "INDEX_ERROR"
	ErrCodeStore              = "STORE_ERROR"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTimeout            = "TIMEOUT_ERROR"
)

// IntentError is the structured error type for all intentd operations.
type IntentError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Action  string         `json:"action,omitempty"`
	Cause   error          `json:"-"`
}

func (e *IntentError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("[%s] action %s: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *IntentError) Unwrap() error {
	return e.Cause
}

// NewError creates a new IntentError.
func NewError(code, message string) *IntentError {
	return &IntentError{Code: code, Message: message}
}

// NewErrorf creates a new IntentError with a formatted message.
func NewErrorf(code, format string, args ...any) *IntentError {
	return &IntentError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithAction attaches the action name to the error.
func (e *IntentError) WithAction(name string) *IntentError {
	e.Action = name
	return e
}

// WithCause attaches an underlying cause.
func (e *IntentError) WithCause(err error) *IntentError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *IntentError) WithDetails(details map[string]any) *IntentError {
	e.Details = details
	return e
}

// CodeOf returns the structured code of err, or ErrCodeHandler when err is
// not an IntentError.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var ie *IntentError
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ErrCodeHandler
}
