package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrTypeAuthRequired ErrorType = "AUTH_REQUIRED"
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeNetwork      ErrorType = "NETWORK"
)

// Error is the error type every chatsync client operation returns.
type Error struct {
	Type       ErrorType
	Operation  string
	StatusCode int // 0 when no response was received
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	prefix := fmt.Sprintf("chatsync %s error in %s", e.Type, e.Operation)
	if e.StatusCode != 0 {
		prefix += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the bare sentinels below by type, so
// errors.Is(err, ErrAuthRequired) works for any auth failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Operation != "" || t.StatusCode != 0 {
		return false
	}
	return t.Type == e.Type
}

var (
	ErrAuthRequired = &Error{Type: ErrTypeAuthRequired, Message: "authentication required"}
	ErrValidation   = &Error{Type: ErrTypeValidation, Message: "invalid input"}
	ErrNetwork      = &Error{Type: ErrTypeNetwork, Message: "request failed"}
)

func NewAuthRequiredError(operation, msg string, cause error) *Error {
	return &Error{Type: ErrTypeAuthRequired, Operation: operation, Message: msg, Cause: cause}
}

func NewValidationError(operation, msg string) *Error {
	return &Error{Type: ErrTypeValidation, Operation: operation, Message: msg}
}

func NewNetworkError(operation string, status int, msg string, cause error) *Error {
	return &Error{Type: ErrTypeNetwork, Operation: operation, StatusCode: status, Message: msg, Cause: cause}
}

func IsAuthRequired(err error) bool { return errors.Is(err, ErrAuthRequired) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }
func IsNetwork(err error) bool      { return errors.Is(err, ErrNetwork) }

// StatusCode returns the HTTP status attached to err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

func isUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}
