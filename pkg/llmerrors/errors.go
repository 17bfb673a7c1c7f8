// Package llmerrors provides structured error classification for completion-service interactions.
package llmerrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// ErrorType represents different categories of completion-service errors.
type ErrorType int8

const (
	// Transient error types. These never force a status transition; the
	// caller falls back and retries on the next user turn.

	// ErrorTypeRateLimit represents rate limiting errors (429, quota exceeded).
	ErrorTypeRateLimit ErrorType = iota
	// ErrorTypeTransient represents transient errors (5xx, EOF, connection reset, timeout).
	ErrorTypeTransient
	// ErrorTypeEmptyResponse represents HTTP 200 but no content errors.
	ErrorTypeEmptyResponse

	// Permanent error types. These are surfaced to the caller as-is and may
	// drive an intervention transition.

	// ErrorTypeAuth represents authentication errors (401/403, bad API key).
	ErrorTypeAuth
	// ErrorTypeBadPrompt represents malformed request errors (too long, violates policy).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypeEmptyResponse:
		return "empty_response"
	case ErrorTypeAuth:
		return "auth"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified completion-service error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("completion error (%s): %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("completion error (%s): %v", e.Type.String(), e.Err)
	}
	return fmt.Sprintf("completion error (%s)", e.Type.String())
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with a message.
func NewError(errType ErrorType, message string) *Error {
	return &Error{Type: errType, Message: message}
}

// WrapError wraps an underlying error with a classification.
func WrapError(errType ErrorType, err error, message string) *Error {
	return &Error{Type: errType, Err: err, Message: message}
}

// IsTransient reports whether the error is a transient collaborator failure
// that should be retried on the next turn rather than recorded on the project.
func IsTransient(err error) bool {
	var classified *Error
	if errors.As(err, &classified) {
		switch classified.Type {
		case ErrorTypeRateLimit, ErrorTypeTransient, ErrorTypeEmptyResponse:
			return true
		case ErrorTypeAuth, ErrorTypeBadPrompt, ErrorTypeUnknown:
			return false
		}
	}
	// Unclassified errors: fall back to inspecting the error chain.
	return Classify(err) != nil && isTransientType(Classify(err).Type)
}

func isTransientType(t ErrorType) bool {
	return t == ErrorTypeRateLimit || t == ErrorTypeTransient || t == ErrorTypeEmptyResponse
}

// Classify inspects an arbitrary error and returns a classified Error.
// Already-classified errors are returned unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return WrapError(ErrorTypeTransient, err, "request timed out or was canceled")
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return WrapError(ErrorTypeTransient, err, "connection closed unexpectedly")
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return WrapError(ErrorTypeTransient, err, "network error")
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") || strings.Contains(msg, "quota"):
		return WrapError(ErrorTypeRateLimit, err, "rate limited")
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return WrapError(ErrorTypeAuth, err, "authentication failed")
	case strings.Contains(msg, "500") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout"):
		return WrapError(ErrorTypeTransient, err, "service unavailable")
	case strings.Contains(msg, "context length") || strings.Contains(msg, "too long") ||
		strings.Contains(msg, "invalid request"):
		return WrapError(ErrorTypeBadPrompt, err, "request rejected by provider")
	default:
		return WrapError(ErrorTypeUnknown, err, "")
	}
}
