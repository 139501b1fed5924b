package components

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/retry"
)

// maxResponseBody caps how much of a response body is kept as output.
const maxResponseBody = 8 << 20

// HTTPRequest is the props of an HTTP component.
type HTTPRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`

	// JSON is encoded as the request body when set and takes precedence
	// over Body.
	JSON any `json:"json,omitempty"`

	// Timeout bounds each attempt. Defaults to 30s.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// HTTPResponse is the output of an HTTP component.
type HTTPResponse struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
	JSON       any               `json:"json,omitempty"`
}

// Success reports whether the status code is 2xx.
func (r HTTPResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// HTTPOptions configures an HTTP component.
type HTTPOptions struct {
	Client       *http.Client
	RetryOptions []retry.Option

	// FailOnStatus turns non-2xx responses into component errors.
	FailOnStatus bool
}

// NewHTTP returns a component that sends a request and records the
// response as its output. Connection failures, 429s and 5xx responses are
// retried. When the retry budget is spent on a retryable status, the last
// response is returned. The Authorization header is masked in checkpoints.
func NewHTTP(name string, httpOpts HTTPOptions, opts ...weave.ComponentOption) *weave.Component[HTTPRequest, HTTPResponse] {
	client := httpOpts.Client
	if client == nil {
		client = http.DefaultClient
	}
	opts = append([]weave.ComponentOption{weave.WithSecretProps("headers.Authorization")}, opts...)

	return weave.NewComponent(name, func(ctx context.Context, req HTTPRequest) (HTTPResponse, error) {
		if req.URL == "" {
			return HTTPResponse{}, errors.New("url cannot be empty")
		}
		req.Method = strings.ToUpper(req.Method)
		if req.Method == "" {
			req.Method = http.MethodGet
		}
		body, contentType, err := requestBody(req)
		if err != nil {
			return HTTPResponse{}, err
		}

		var response HTTPResponse
		err = retry.Do(ctx, func() error {
			response, err = doHTTP(ctx, client, req, body, contentType)
			if err != nil {
				return err
			}
			statusErr := &retry.StatusError{StatusCode: response.StatusCode, Body: response.Body}
			if statusErr.IsRecoverable() {
				return statusErr
			}
			return nil
		}, httpOpts.RetryOptions...)

		var statusErr *retry.StatusError
		if err != nil && !errors.As(err, &statusErr) {
			return HTTPResponse{}, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
		}
		if httpOpts.FailOnStatus && !response.Success() {
			return response, fmt.Errorf("%s %s: %w", req.Method, req.URL,
				&retry.StatusError{StatusCode: response.StatusCode, Body: response.Body})
		}
		return response, nil
	}, opts...)
}

func requestBody(req HTTPRequest) ([]byte, string, error) {
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal json body: %w", err)
		}
		return data, "application/json", nil
	}
	if req.Body != "" {
		return []byte(req.Body), "", nil
	}
	return nil, "", nil
}

func doHTTP(ctx context.Context, client *http.Client, req HTTPRequest, body []byte, contentType string) (HTTPResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return HTTPResponse{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return HTTPResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return HTTPResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}
	response := HTTPResponse{
		StatusCode: resp.StatusCode,
		Headers:    make(map[string]string, len(resp.Header)),
		Body:       string(data),
	}
	for key, values := range resp.Header {
		if len(values) > 0 {
			response.Headers[key] = values[0]
		}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		var parsed any
		if err := json.Unmarshal(data, &parsed); err == nil {
			response.JSON = parsed
		}
	}
	return response, nil
}

// NewSleep returns a component that waits for its props duration or until
// the context is done.
func NewSleep(name string, opts ...weave.ComponentOption) *weave.Component[time.Duration, time.Duration] {
	return weave.NewComponent(name, func(ctx context.Context, d time.Duration) (time.Duration, error) {
		if d <= 0 {
			return 0, nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		start := time.Now()
		select {
		case <-timer.C:
			return d, nil
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		}
	}, opts...)
}
