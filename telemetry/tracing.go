package telemetry

import (
	"context"
	"sync"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/checkpoint"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ weave.ExecutionCallbacks = (*Tracing)(nil)

const instrumentationName = "github.com/deepnoodle-ai/weave"

// Tracing records a span per workflow execution and per component
// invocation. Component spans are children of the span of the component
// that invoked them, mirroring the checkpoint tree.
type Tracing struct {
	tracer trace.Tracer

	mutex sync.Mutex
	spans map[spanKey]trace.Span
}

type spanKey struct {
	executionID string
	nodeID      string
}

// NewTracing creates span callbacks using provider, or the global tracer
// provider when provider is nil.
func NewTracing(provider trace.TracerProvider) *Tracing {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Tracing{
		tracer: provider.Tracer(instrumentationName),
		spans:  map[spanKey]trace.Span{},
	}
}

func (t *Tracing) start(ctx context.Context, key, parent spanKey, name string, attrs ...attribute.KeyValue) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if span, ok := t.spans[parent]; ok {
		ctx = trace.ContextWithSpan(ctx, span)
	}
	_, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	t.spans[key] = span
}

func (t *Tracing) end(key spanKey, err error, attrs ...attribute.KeyValue) {
	t.mutex.Lock()
	span, ok := t.spans[key]
	delete(t.spans, key)
	t.mutex.Unlock()
	if !ok {
		return
	}
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *Tracing) BeforeWorkflowExecution(ctx context.Context, event *weave.WorkflowExecutionEvent) {
	key := spanKey{executionID: event.ExecutionID, nodeID: checkpoint.RootID}
	t.start(ctx, key, spanKey{}, "workflow "+event.WorkflowName,
		attribute.String("weave.workflow", event.WorkflowName),
		attribute.String("weave.execution_id", event.ExecutionID),
	)
}

func (t *Tracing) AfterWorkflowExecution(ctx context.Context, event *weave.WorkflowExecutionEvent) {
	key := spanKey{executionID: event.ExecutionID, nodeID: checkpoint.RootID}
	t.end(key, event.Error,
		attribute.String("weave.status", string(event.Status)),
		attribute.Int("weave.steps", event.Steps),
	)
}

func (t *Tracing) BeforeComponentExecution(ctx context.Context, event *weave.ComponentExecutionEvent) {
	key := spanKey{executionID: event.ExecutionID, nodeID: event.ComponentID}
	parent := spanKey{executionID: event.ExecutionID, nodeID: event.ParentID}
	attrs := []attribute.KeyValue{
		attribute.String("weave.component", event.ComponentName),
		attribute.String("weave.node_id", event.ComponentID),
		attribute.String("weave.execution_id", event.ExecutionID),
	}
	if event.Label != "" {
		attrs = append(attrs, attribute.String("weave.label", event.Label))
	}
	t.start(ctx, key, parent, event.ComponentName, attrs...)
}

func (t *Tracing) AfterComponentExecution(ctx context.Context, event *weave.ComponentExecutionEvent) {
	key := spanKey{executionID: event.ExecutionID, nodeID: event.ComponentID}
	t.end(key, event.Error)
}
