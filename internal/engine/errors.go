// internal/engine/errors.go
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Common engine errors
var (
	ErrBlocked             = errors.New("blocked by policy")
	ErrNoStaticFetcher     = errors.New("no static fetcher configured")
	ErrRendererUnavailable = errors.New("renderer unavailable")
	ErrEmptyRender         = errors.New("render returned no content")
)

// ErrorCode classifies a failure for logs and metrics
type ErrorCode string

const (
	ErrCodeBlocked      ErrorCode = "BLOCKED"
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeRenderFailed ErrorCode = "RENDER_FAILED"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// EngineError wraps errors with additional context
type EngineError struct {
	Code       ErrorCode
	Message    string
	Underlying error
	Retry      bool
	Details    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// Is checks if the error matches the target
func (e *EngineError) Is(target error) bool {
	if t, ok := target.(*EngineError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Underlying, target)
}

// Reason is the text reported to callers in a result's error field: the
// underlying error when there is one, the message otherwise.
func (e *EngineError) Reason() string {
	if e.Underlying != nil {
		return e.Underlying.Error()
	}
	return e.Message
}

// NewEngineError creates a new EngineError
func NewEngineError(code ErrorCode, message string, err error) *EngineError {
	return &EngineError{
		Code:       code,
		Message:    message,
		Underlying: err,
		Details:    make(map[string]interface{}),
	}
}

// WithRetry marks the error as retryable
func (e *EngineError) WithRetry() *EngineError {
	e.Retry = true
	return e
}

// WithDetail adds a detail to the error
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	e.Details[key] = value
	return e
}

// classify picks the code for a transport or render error, preferring
// TIMEOUT when a deadline caused it
func classify(err error, fallback ErrorCode) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return ErrCodeTimeout
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return fallback
}
