package components_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/components"
	"github.com/deepnoodle-ai/weave/retry"
	"github.com/stretchr/testify/require"
)

func TestHTTPComponent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.Equal(t, "Bearer sk-test-123456", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"q":"weave"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits":2}`))
	}))
	defer server.Close()

	writer := &lastWrite{}
	fetch := components.NewHTTP("Search", components.HTTPOptions{})
	wf := weave.NewWorkflow("search", func(ctx context.Context, _ struct{}) (components.HTTPResponse, error) {
		return fetch.Run(ctx, components.HTTPRequest{
			URL:     server.URL,
			Method:  "post",
			Headers: map[string]string{"Authorization": "Bearer sk-test-123456"},
			JSON:    map[string]any{"q": "weave"},
		})
	})
	resp, err := wf.Run(context.Background(), struct{}{}, weave.RunOptions{CheckpointWriter: writer})
	require.NoError(t, err)
	require.True(t, resp.Success())
	require.Equal(t, map[string]any{"hits": float64(2)}, resp.JSON)

	node := writer.snapshot.Root.Children[0].Children[0]
	require.Equal(t, "Search", node.ComponentName)
	props := node.Props.(map[string]any)
	require.Equal(t, map[string]any{"Authorization": "[secret]"}, props["headers"])
}

func TestHTTPComponentRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetch := components.NewHTTP("Fetch", components.HTTPOptions{
		RetryOptions: []retry.Option{retry.WithBaseWait(time.Millisecond)},
	})
	resp, err := fetch.Run(context.Background(), components.HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Body)
	require.Equal(t, int32(3), calls.Load())
}

func TestHTTPComponentStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer server.Close()

	lenient := components.NewHTTP("Fetch", components.HTTPOptions{})
	resp, err := lenient.Run(context.Background(), components.HTTPRequest{URL: server.URL})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.False(t, resp.Success())
	require.Equal(t, int32(1), calls.Load())

	strict := components.NewHTTP("Fetch", components.HTTPOptions{FailOnStatus: true})
	_, err = strict.Run(context.Background(), components.HTTPRequest{URL: server.URL})
	var statusErr *retry.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = strict.Run(context.Background(), components.HTTPRequest{})
	require.ErrorContains(t, err, "url cannot be empty")
}

func TestSleep(t *testing.T) {
	sleep := components.NewSleep("Sleep")
	d, err := sleep.Run(context.Background(), 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 5*time.Millisecond, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = sleep.Run(ctx, time.Minute)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
