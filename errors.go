package weave

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error type constants for classification and matching
const (
	// ErrorTypeAll acts as a wildcard that matches any error except fatal errors
	ErrorTypeAll = "all"

	// ErrorTypeComponentFailed matches any error except timeouts and fatal errors
	ErrorTypeComponentFailed = "component_failed"

	// ErrorTypeTimeout matches a timeout or canceled context
	ErrorTypeTimeout = "timeout"

	// ErrorTypeFatal marks an error the caller should not retry, such as a
	// panic in a component. Unknown errors are classified as component
	// failures.
	ErrorTypeFatal = "fatal_error"
)

// TypedError is an error with a classification. Components return one to
// tell callers and callbacks how a failure should be treated.
type TypedError struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	Details any    `json:"details,omitempty"`
	Wrapped error  `json:"-"`
}

func (e *TypedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Cause)
}

func (e *TypedError) Unwrap() error {
	return e.Wrapped
}

// NewTypedError creates an error of a user-defined type, e.g.
// "rate-limited".
func NewTypedError(errorType, cause string) *TypedError {
	return &TypedError{Type: errorType, Cause: cause}
}

// ClassifyError returns the TypedError in err's chain, or builds one from
// well-known error values.
func ClassifyError(err error) *TypedError {
	var typed *TypedError
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return &TypedError{
			Type:    ErrorTypeTimeout,
			Cause:   err.Error(),
			Wrapped: err,
		}
	}
	return &TypedError{
		Type:    ErrorTypeComponentFailed,
		Cause:   err.Error(),
		Wrapped: err,
	}
}

// MatchesErrorType checks if an error matches a specified error type pattern
func MatchesErrorType(err error, errorType string) bool {
	typed := ClassifyError(err)
	// Fatal errors are only matched by the ErrorTypeFatal pattern
	if typed.Type == ErrorTypeFatal {
		return errorType == ErrorTypeFatal
	}
	switch errorType {
	case ErrorTypeAll:
		return true
	case ErrorTypeComponentFailed:
		return typed.Type != ErrorTypeTimeout
	default:
		return typed.Type == errorType
	}
}

// errorMetadata is recorded on the checkpoint node of a failed component.
func errorMetadata(err error) map[string]any {
	typed := ClassifyError(err)
	info := map[string]any{
		"name":    typed.Type,
		"message": err.Error(),
		"type":    "error",
	}
	if typed.Details != nil {
		info["details"] = typed.Details
	}
	return info
}

// ComponentError reports a failed component invocation.
type ComponentError struct {
	Component string
	NodeID    string
	Err       error
}

func (e *ComponentError) Error() string {
	return fmt.Sprintf("component %s failed: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	return e.Err
}

// WorkflowError reports a failed workflow execution.
type WorkflowError struct {
	Workflow    string
	ExecutionID string
	Err         error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("workflow %s (%s) failed: %v", e.Workflow, e.ExecutionID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
