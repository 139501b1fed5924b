package weave

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/deepnoodle-ai/weave/message"
)

// ComponentFunc is the body of a component.
type ComponentFunc[P, R any] func(ctx context.Context, props P) (R, error)

// ComponentOptions configures a component.
type ComponentOptions struct {
	// Label is attached to the component's start and end messages and
	// recorded as "label" in its checkpoint metadata.
	Label string

	// Metadata is recorded on every checkpoint node of the component.
	Metadata map[string]any

	// SecretProps lists dot-separated paths into the props whose values
	// are masked in checkpoints.
	SecretProps []string

	// SecretOutputs masks the component's output in checkpoints.
	SecretOutputs bool
}

type ComponentOption func(*ComponentOptions)

func WithLabel(label string) ComponentOption {
	return func(o *ComponentOptions) {
		o.Label = label
	}
}

func WithMetadata(metadata map[string]any) ComponentOption {
	return func(o *ComponentOptions) {
		if o.Metadata == nil {
			o.Metadata = map[string]any{}
		}
		maps.Copy(o.Metadata, metadata)
	}
}

func WithSecretProps(paths ...string) ComponentOption {
	return func(o *ComponentOptions) {
		o.SecretProps = append(o.SecretProps, paths...)
	}
}

func WithSecretOutputs() ComponentOption {
	return func(o *ComponentOptions) {
		o.SecretOutputs = true
	}
}

// Component is a named unit of work that may invoke further components.
// Each run is recorded as a node in the execution's checkpoint tree, under
// the node of the component that invoked it.
type Component[P, R any] struct {
	name string
	fn   ComponentFunc[P, R]
	opts ComponentOptions
}

// NewComponent creates a component.
func NewComponent[P, R any](name string, fn ComponentFunc[P, R], opts ...ComponentOption) *Component[P, R] {
	c := &Component[P, R]{name: name, fn: fn}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

// Name of the Component.
func (c *Component[P, R]) Name() string {
	return c.name
}

// Run invokes the component. Run outside of a workflow, the component gets
// an execution of its own whose messages are discarded.
//
// A failure is recorded on the component's checkpoint node and returned
// as a *ComponentError. A panic in the component body is reported as an
// ErrorTypeFatal error. Components are never retried.
func (c *Component[P, R]) Run(ctx context.Context, props P) (R, error) {
	exec, err := CurrentExecution(ctx)
	if err != nil {
		exec = NewExecutionContext(ExecutionOptions{
			WorkflowName: c.name,
			Logger:       LoggerFromContext(ctx),
		})
		ctx = WithExecution(ctx, exec)
	}
	manager := exec.Checkpoints()
	parentID := manager.CurrentNode(ctx)

	metadata := c.opts.Metadata
	if c.opts.Label != "" {
		metadata = maps.Clone(metadata)
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["label"] = c.opts.Label
	}
	nodeID, ctx := manager.AddNode(ctx, checkpoint.NodeSpec{
		ComponentName: c.name,
		Props:         props,
		Metadata:      metadata,
		SecretProps:   c.opts.SecretProps,
		SecretOutputs: c.opts.SecretOutputs,
	})
	logger := exec.Logger().With("component", c.name, "node_id", nodeID)

	event := &ComponentExecutionEvent{
		ExecutionID:   exec.ID(),
		WorkflowName:  exec.WorkflowName(),
		ComponentName: c.name,
		ComponentID:   nodeID,
		ParentID:      parentID,
		Label:         c.opts.Label,
		Props:         props,
		StartTime:     time.Now(),
	}
	exec.Send(&message.ComponentStart{ComponentName: c.name, ComponentID: nodeID, Label: c.opts.Label})
	exec.Callbacks().BeforeComponentExecution(ctx, event)
	logger.Debug("component started")

	output, err := c.invoke(ctx, props)

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	if err != nil {
		manager.AddMetadata(nodeID, map[string]any{"error": errorMetadata(err)})
		manager.CompleteNode(nodeID, nil)
		err = &ComponentError{Component: c.name, NodeID: nodeID, Err: err}
		event.Error = err
		logger.Debug("component failed", "error", err, "duration", event.Duration)
	} else {
		manager.CompleteNode(nodeID, output)
		event.Result = output
		logger.Debug("component completed", "duration", event.Duration)
	}

	exec.Send(&message.ComponentEnd{ComponentName: c.name, ComponentID: nodeID, Label: c.opts.Label})
	exec.Callbacks().AfterComponentExecution(ctx, event)
	if err != nil {
		var zero R
		return zero, err
	}
	return output, nil
}

func (c *Component[P, R]) invoke(ctx context.Context, props P) (output R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			output = zero
			err = NewTypedError(ErrorTypeFatal, fmt.Sprintf("panic: %v", r))
		}
	}()
	return c.fn(ctx, props)
}
