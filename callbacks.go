package weave

import (
	"context"
	"time"
)

// ExecutionStatus represents the status of a workflow execution
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionCallbacks receives workflow and component lifecycle events.
// Callbacks run synchronously on the goroutine running the component.
type ExecutionCallbacks interface {
	// Workflow-level callbacks
	BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent)
	AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent)

	// Component-level callbacks
	BeforeComponentExecution(ctx context.Context, event *ComponentExecutionEvent)
	AfterComponentExecution(ctx context.Context, event *ComponentExecutionEvent)
}

// WorkflowExecutionEvent provides context for workflow-level execution events
type WorkflowExecutionEvent struct {
	ExecutionID  string
	WorkflowName string
	Status       ExecutionStatus
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Props        any
	Output       any
	Steps        int
	Error        error
}

// ComponentExecutionEvent provides context for component execution events
type ComponentExecutionEvent struct {
	ExecutionID   string
	WorkflowName  string
	ComponentName string
	ComponentID   string
	ParentID      string
	Label         string
	Props         any
	Result        any
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
	Error         error
}

// BaseExecutionCallbacks provides a default implementation that does nothing
type BaseExecutionCallbacks struct{}

func (n *BaseExecutionCallbacks) BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) BeforeComponentExecution(ctx context.Context, event *ComponentExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterComponentExecution(ctx context.Context, event *ComponentExecutionEvent) {
	// noop
}

// NewBaseExecutionCallbacks creates a new no-op callbacks implementation.
// Embed BaseExecutionCallbacks in your own callbacks to only implement the
// events you care about.
func NewBaseExecutionCallbacks() ExecutionCallbacks {
	return &BaseExecutionCallbacks{}
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []ExecutionCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...ExecutionCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback ExecutionCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeWorkflowExecution(ctx, event)
	}
}

func (c *CallbackChain) AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.AfterWorkflowExecution(ctx, event)
	}
}

func (c *CallbackChain) BeforeComponentExecution(ctx context.Context, event *ComponentExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeComponentExecution(ctx, event)
	}
}

func (c *CallbackChain) AfterComponentExecution(ctx context.Context, event *ComponentExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.AfterComponentExecution(ctx, event)
	}
}
