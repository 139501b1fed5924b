package checkpoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/deepnoodle-ai/weave/retry"
	"github.com/klauspost/compress/gzip"
)

const userAgent = "weave-go"

// HTTPWriterOptions configures an HTTPWriter.
type HTTPWriterOptions struct {
	// BaseURL is the API root, e.g. http://localhost:1337.
	BaseURL string

	// Org scopes trace URLs as {BaseURL}/org/{Org}/traces when set.
	Org string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// ConsoleURL, when set, is used to log a link to each execution once.
	ConsoleURL string

	Client       *http.Client
	Logger       *slog.Logger
	RetryOptions []retry.Option
}

// HTTPWriter uploads snapshots to a trace API. The first write of an
// execution creates a trace with POST; later writes update it with PUT.
// Request bodies are gzip-compressed JSON.
type HTTPWriter struct {
	baseURL    string
	org        string
	apiKey     string
	consoleURL string
	client     *http.Client
	logger     *slog.Logger
	retryOpts  []retry.Option

	mutex    sync.Mutex
	traceIDs map[string]string
	linked   map[string]bool
}

func NewHTTPWriter(opts HTTPWriterOptions) (*HTTPWriter, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPWriter{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		org:        opts.Org,
		apiKey:     opts.APIKey,
		consoleURL: strings.TrimRight(opts.ConsoleURL, "/"),
		client:     opts.Client,
		logger:     opts.Logger,
		retryOpts:  opts.RetryOptions,
		traceIDs:   map[string]string{},
		linked:     map[string]bool{},
	}, nil
}

type tracePayload struct {
	ExecutionID   string `json:"executionId"`
	Version       int    `json:"version"`
	SchemaVersion int    `json:"schemaVersion"`
	WorkflowName  string `json:"workflowName"`
	StartedAt     int64  `json:"startedAt"`
	CompletedAt   int64  `json:"completedAt,omitempty"`
	RawExecution  string `json:"rawExecution"`
	Steps         int    `json:"steps"`
}

type rawExecution struct {
	*Node
	UpdatedAt int64 `json:"updatedAt"`
}

// TraceID returns the trace id assigned to an execution by the server.
func (w *HTTPWriter) TraceID(executionID string) string {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.traceIDs[executionID]
}

func (w *HTTPWriter) Write(ctx context.Context, snapshot *Snapshot) error {
	raw, err := json.Marshal(rawExecution{Node: snapshot.Root, UpdatedAt: snapshot.UpdatedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal execution tree: %w", err)
	}
	compressedRaw, err := gzipBytes(raw)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(tracePayload{
		ExecutionID:   snapshot.ExecutionID,
		Version:       snapshot.Version,
		SchemaVersion: snapshot.SchemaVersion,
		WorkflowName:  snapshot.WorkflowName,
		StartedAt:     snapshot.StartedAt,
		CompletedAt:   snapshot.CompletedAt,
		RawExecution:  base64.StdEncoding.EncodeToString(compressedRaw),
		Steps:         snapshot.Steps,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint payload: %w", err)
	}
	body, err := gzipBytes(payload)
	if err != nil {
		return err
	}

	tracesURL := w.baseURL + "/traces"
	if w.org != "" {
		tracesURL = fmt.Sprintf("%s/org/%s/traces", w.baseURL, url.PathEscape(w.org))
	}
	method, target := http.MethodPost, tracesURL
	if traceID := w.TraceID(snapshot.ExecutionID); traceID != "" {
		method, target = http.MethodPut, tracesURL+"/"+url.PathEscape(traceID)
	}

	var response []byte
	err = retry.Do(ctx, func() error {
		response, err = w.send(ctx, method, target, body)
		return err
	}, w.retryOpts...)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	w.recordTrace(snapshot, response)
	return nil
}

func (w *HTTPWriter) send(ctx context.Context, method, target string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("User-Agent", userAgent)
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}

// recordTrace remembers the trace id from a successful response. Responses
// may nest their fields under "data" and name the id traceId or id.
func (w *HTTPWriter) recordTrace(snapshot *Snapshot, response []byte) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	fields := response
	if err := json.Unmarshal(response, &envelope); err == nil && len(envelope.Data) > 0 {
		fields = envelope.Data
	}
	var result struct {
		TraceID string `json:"traceId"`
		ID      string `json:"id"`
	}
	if err := json.Unmarshal(fields, &result); err != nil {
		w.logger.Debug("checkpoint response is not json", "error", err)
		return
	}
	traceID := result.TraceID
	if traceID == "" {
		traceID = result.ID
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()
	if traceID != "" {
		w.traceIDs[snapshot.ExecutionID] = traceID
	}
	if w.consoleURL != "" && !w.linked[snapshot.ExecutionID] {
		w.linked[snapshot.ExecutionID] = true
		w.logger.Info("view execution",
			"url", fmt.Sprintf("%s/%s/default/executions/%s?workflowName=%s",
				w.consoleURL, w.org, snapshot.ExecutionID, url.QueryEscape(snapshot.WorkflowName)))
	}
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}
