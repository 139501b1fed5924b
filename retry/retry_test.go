package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("invalid input"), false},
		{"transient", Transient(errors.New("invalid input")), true},
		{"permanent", Permanent(errors.New("connection refused")), false},
		{"wrapped transient", fmt.Errorf("upload: %w", Transient(errors.New("x"))), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"canceled", context.Canceled, false},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("no route")}, true},
		{"message", errors.New("upstream: Service Unavailable"), true},
		{"throttled", &StatusError{StatusCode: 429}, true},
		{"server error", &StatusError{StatusCode: 502}, true},
		{"client error", &StatusError{StatusCode: 400}, false},
		{"unauthorized", &StatusError{StatusCode: 401, Body: "unauthorized"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err))
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "server responded 404 Not Found", (&StatusError{StatusCode: 404}).Error())
	assert.Equal(t, "server responded 400 Bad Request: bad payload", (&StatusError{StatusCode: 400, Body: "bad payload"}).Error())
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		return Transient(errors.New("test error"))
	}, WithMaxRetries(3), WithBaseWait(time.Millisecond*20))
	assert.Error(t, err)
	assert.Equal(t, "test error", err.Error())
	assert.Equal(t, 4, count)
}

func TestRetryZeroMaxRetries(t *testing.T) {
	ctx := context.Background()
	count := 0
	err := Do(ctx, func() error {
		count++
		return Transient(errors.New("test error"))
	}, WithMaxRetries(0), WithBaseWait(time.Millisecond*20))
	assert.Error(t, err)
	assert.Equal(t, "test error", err.Error())
	assert.Equal(t, 1, count)
}

func TestRetryStopsOnPermanent(t *testing.T) {
	count := 0
	err := Do(context.Background(), func() error {
		count++
		return Permanent(errors.New("bad request"))
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	assert.EqualError(t, err, "bad request")
	assert.Equal(t, 1, count)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	count := 0
	var waits []time.Duration
	err := Do(context.Background(), func() error {
		count++
		if count < 3 {
			return &StatusError{StatusCode: 503}
		}
		return nil
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond), WithNotify(func(err error, wait time.Duration) {
		waits = append(waits, wait)
	}))
	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, waits, 2)
}

func TestRetryCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	count := 0
	err := Do(ctx, func() error {
		count++
		return Transient(errors.New("test error"))
	}, WithMaxRetries(5), WithBaseWait(time.Millisecond))
	assert.Error(t, err)
	assert.Equal(t, 1, count)
}
