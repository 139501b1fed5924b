package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// RecoverableError is implemented by errors that know whether the failed
// call may succeed when repeated.
type RecoverableError interface {
	error
	IsRecoverable() bool
}

// transientMessages are substrings of error messages from failures that
// usually clear up on their own.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"temporary failure",
	"rate limit",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
}

// IsRecoverable reports whether err is worth retrying. Errors implementing
// RecoverableError decide for themselves. Otherwise deadlines and network
// errors are recoverable, cancellation is not, and any other error is
// recoverable only if its message names a known transient failure.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var marked RecoverableError
	if errors.As(err, &marked) {
		return marked.IsRecoverable()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type markedError struct {
	err         error
	recoverable bool
}

func (e *markedError) Error() string       { return e.err.Error() }
func (e *markedError) Unwrap() error       { return e.err }
func (e *markedError) IsRecoverable() bool { return e.recoverable }

// Transient marks err as recoverable.
func Transient(err error) error {
	return &markedError{err: err, recoverable: true}
}

// Permanent marks err as not recoverable, stopping Do immediately.
func Permanent(err error) error {
	return &markedError{err: err}
}

// StatusError reports an unsuccessful HTTP response. Throttling, request
// timeouts and server errors are recoverable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server responded %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) IsRecoverable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return e.StatusCode >= 500
}
