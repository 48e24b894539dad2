package utils

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// NetworkError is a failed exchange with the task store: transport errors,
// unexpected status codes and undecodable responses.
type NetworkError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when acting on a task id that the cache or the
// store does not have.
type NotFoundError struct {
	ID int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task not found: %d", e.ID)
}

// ValidationError reports rejected user input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsNetworkError reports whether err wraps a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrEmptyText returns the error for a blank task title.
func ErrEmptyText() error {
	return &ValidationError{Field: "text", Message: "task text must not be empty"}
}

// ErrTaskNotFound returns a NotFoundError for id.
func ErrTaskNotFound(id int) error {
	return &NotFoundError{ID: id}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ValidationError{Field: "due date", Message: fmt.Sprintf("%q is not a date", dateStr)}
}

// ErrInvalidFilter returns an error for an unknown filter name.
func ErrInvalidFilter(name string, valid []string) error {
	return &ValidationError{
		Field:   "filter",
		Message: fmt.Sprintf("%q (valid options: %s)", name, strings.Join(valid, ", ")),
	}
}

// ErrInvalidID returns an error for a task id argument that is not a positive integer.
func ErrInvalidID(raw string) error {
	return &ValidationError{Field: "id", Message: fmt.Sprintf("%q is not a task id", raw)}
}

// WithSuggestion attaches a user-facing suggestion that fits the error kind.
// Errors that already carry a suggestion are returned unchanged.
func WithSuggestion(err error) error {
	if err == nil {
		return nil
	}
	var ws *ErrorWithSuggestion
	if errors.As(err, &ws) {
		return err
	}

	switch {
	case IsValidation(err):
		var ve *ValidationError
		errors.As(err, &ve)
		if ve.Field == "due date" {
			return WrapWithSuggestion(err, "Use date format YYYY-MM-DD (e.g., 2026-01-15) or today, tomorrow, +3d")
		}
		return WrapWithSuggestion(err, "Check the command arguments with --help")
	case IsNotFound(err):
		return WrapWithSuggestion(err, "Use 'todosync list' to see the loaded tasks")
	case IsNetworkError(err):
		return WrapWithSuggestion(err, getSmartSuggestion(err.Error()))
	}
	return err
}

// getSmartSuggestion returns a context-aware suggestion based on the error reason.
func getSmartSuggestion(reason string) string {
	lowerReason := strings.ToLower(reason)

	if strings.Contains(lowerReason, "no such host") || strings.Contains(lowerReason, "dns") {
		return "Check your DNS settings and internet connection"
	}

	if strings.Contains(lowerReason, "connection refused") {
		return "Check if the server is running and accessible"
	}

	if strings.Contains(lowerReason, "timeout") || strings.Contains(lowerReason, "i/o timeout") {
		return "The server may be slow or unreachable. Try again later"
	}

	if strings.Contains(lowerReason, "rate limit") {
		return "The task store is throttling requests. Wait a moment and try again"
	}

	return "Check your internet connection and the api.base_url setting"
}
