// Package telemetry exports workflow and component activity as Prometheus
// metrics and OpenTelemetry spans. Both are execution callbacks and can be
// combined with weave.NewCallbackChain.
package telemetry

import (
	"context"
	"net/http"

	"github.com/deepnoodle-ai/weave"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ weave.ExecutionCallbacks = (*Metrics)(nil)

// MetricsOptions configures Metrics.
type MetricsOptions struct {
	// Namespace prefixes every metric name. Defaults to "weave".
	Namespace string

	// Buckets are the duration histogram buckets in seconds. Defaults to
	// prometheus.DefBuckets.
	Buckets []float64

	// Registry receives the collectors. Defaults to a new registry.
	Registry *prometheus.Registry
}

// Metrics records Prometheus metrics for workflow and component runs.
type Metrics struct {
	registry *prometheus.Registry

	workflowsStarted   *prometheus.CounterVec
	workflowsCompleted *prometheus.CounterVec
	workflowDuration   *prometheus.HistogramVec
	activeWorkflows    prometheus.Gauge

	componentsCompleted *prometheus.CounterVec
	componentDuration   *prometheus.HistogramVec
	componentErrors     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	if opts.Namespace == "" {
		opts.Namespace = "weave"
	}
	if len(opts.Buckets) == 0 {
		opts.Buckets = prometheus.DefBuckets
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	namespace := opts.Namespace

	m := &Metrics{
		registry: opts.Registry,
		workflowsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_started_total",
				Help:      "Total number of workflow executions started",
			},
			[]string{"workflow"},
		),
		workflowsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflows_completed_total",
				Help:      "Total number of workflow executions finished",
			},
			[]string{"workflow", "status"},
		),
		workflowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workflow_duration_seconds",
				Help:      "Duration of workflow executions in seconds",
				Buckets:   opts.Buckets,
			},
			[]string{"workflow", "status"},
		),
		activeWorkflows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workflows",
				Help:      "Number of workflow executions in progress",
			},
		),
		componentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "components_completed_total",
				Help:      "Total number of component invocations finished",
			},
			[]string{"component", "status"},
		),
		componentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_duration_seconds",
				Help:      "Duration of component invocations in seconds",
				Buckets:   opts.Buckets,
			},
			[]string{"component"},
		),
		componentErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_errors_total",
				Help:      "Total number of failed component invocations by error type",
			},
			[]string{"component", "error_type"},
		),
	}

	for _, collector := range []prometheus.Collector{
		m.workflowsStarted,
		m.workflowsCompleted,
		m.workflowDuration,
		m.activeWorkflows,
		m.componentsCompleted,
		m.componentDuration,
		m.componentErrors,
	} {
		if err := m.registry.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BeforeWorkflowExecution(ctx context.Context, event *weave.WorkflowExecutionEvent) {
	m.workflowsStarted.WithLabelValues(event.WorkflowName).Inc()
	m.activeWorkflows.Inc()
}

func (m *Metrics) AfterWorkflowExecution(ctx context.Context, event *weave.WorkflowExecutionEvent) {
	status := string(event.Status)
	m.activeWorkflows.Dec()
	m.workflowsCompleted.WithLabelValues(event.WorkflowName, status).Inc()
	m.workflowDuration.WithLabelValues(event.WorkflowName, status).Observe(event.Duration.Seconds())
}

func (m *Metrics) BeforeComponentExecution(ctx context.Context, event *weave.ComponentExecutionEvent) {
}

func (m *Metrics) AfterComponentExecution(ctx context.Context, event *weave.ComponentExecutionEvent) {
	status := "completed"
	if event.Error != nil {
		status = "failed"
		m.componentErrors.WithLabelValues(event.ComponentName, weave.ClassifyError(event.Error).Type).Inc()
	}
	m.componentsCompleted.WithLabelValues(event.ComponentName, status).Inc()
	m.componentDuration.WithLabelValues(event.ComponentName).Observe(event.Duration.Seconds())
}
