// Package retry runs operations again when they fail with a recoverable
// error, waiting with exponential backoff between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseWait   = 500 * time.Millisecond
	DefaultMaxWait    = 10 * time.Second
)

type options struct {
	maxRetries int
	baseWait   time.Duration
	maxWait    time.Duration
	onRetry    func(err error, wait time.Duration)
}

// Option customizes Do.
type Option func(*options)

// WithMaxRetries sets how many times a failed call is retried. Zero means
// the call runs exactly once.
func WithMaxRetries(n int) Option {
	return func(o *options) {
		o.maxRetries = max(n, 0)
	}
}

// WithBaseWait sets the wait before the first retry.
func WithBaseWait(d time.Duration) Option {
	return func(o *options) {
		o.baseWait = d
	}
}

// WithMaxWait caps the wait between retries.
func WithMaxWait(d time.Duration) Option {
	return func(o *options) {
		o.maxWait = d
	}
}

// WithNotify registers a function called before each retry.
func WithNotify(fn func(err error, wait time.Duration)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Do calls fn until it succeeds, returns an error that is not recoverable,
// the retry budget is spent or ctx is done. The last error from fn is
// returned.
func Do(ctx context.Context, fn func() error, opts ...Option) error {
	o := options{
		maxRetries: DefaultMaxRetries,
		baseWait:   DefaultBaseWait,
		maxWait:    DefaultMaxWait,
	}
	for _, opt := range opts {
		opt(&o)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = o.baseWait
	exp.MaxInterval = max(o.maxWait, o.baseWait)
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(o.maxRetries)), ctx)
	operation := func() error {
		err := fn()
		if err != nil && !IsRecoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.RetryNotify(operation, policy, o.onRetry)
}
