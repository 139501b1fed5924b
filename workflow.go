package weave

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/deepnoodle-ai/weave/blob"
	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
)

// DefaultCheckpointWait bounds how long Run waits for checkpoint writes to
// finish before returning.
const DefaultCheckpointWait = 10 * time.Second

// RunOptions configures a single workflow run.
type RunOptions struct {
	// ExecutionID defaults to a new execution id.
	ExecutionID string

	// Sinks receive every workflow message of the run.
	Sinks []message.Sink

	// CheckpointWriter persists the checkpoint tree. Nil disables
	// checkpoints.
	CheckpointWriter checkpoint.Writer

	Logger    *slog.Logger
	Callbacks ExecutionCallbacks

	// Metadata is recorded on the root checkpoint node.
	Metadata map[string]any

	// StateStore, when set, receives the final value of every published
	// object under objects/<execution id>.
	StateStore blob.Store

	DiffOptions []patch.DiffOption

	// CheckpointWait defaults to DefaultCheckpointWait.
	CheckpointWait time.Duration
}

// Workflow is the entry point of an execution. Every run gets a fresh
// execution context, so concurrent runs never share object state or
// checkpoint trees.
type Workflow[P, R any] struct {
	name      string
	component *Component[P, R]
}

// NewWorkflow creates a workflow whose root component runs fn.
func NewWorkflow[P, R any](name string, fn ComponentFunc[P, R], opts ...ComponentOption) *Workflow[P, R] {
	return &Workflow[P, R]{
		name:      name,
		component: NewComponent(name, fn, opts...),
	}
}

// Name of the Workflow.
func (w *Workflow[P, R]) Name() string {
	return w.name
}

// Run executes the workflow. The sinks see a start message, the messages
// of every component, an error message if the workflow failed and finally
// an end message. Failures are returned as a *WorkflowError.
func (w *Workflow[P, R]) Run(ctx context.Context, props P, opts RunOptions) (R, error) {
	if opts.CheckpointWait <= 0 {
		opts.CheckpointWait = DefaultCheckpointWait
	}
	exec := NewExecutionContext(ExecutionOptions{
		ExecutionID:      opts.ExecutionID,
		WorkflowName:     w.name,
		Sinks:            opts.Sinks,
		CheckpointWriter: opts.CheckpointWriter,
		Logger:           opts.Logger,
		Callbacks:        opts.Callbacks,
		DiffOptions:      opts.DiffOptions,
	})
	ctx = WithExecution(ctx, exec)
	ctx = WithLogger(ctx, exec.Logger())
	logger := exec.Logger()
	manager := exec.Checkpoints()

	event := &WorkflowExecutionEvent{
		ExecutionID:  exec.ID(),
		WorkflowName: w.name,
		Status:       ExecutionStatusRunning,
		StartTime:    time.Now(),
		Props:        props,
	}
	exec.Send(&message.Start{WorkflowName: w.name, WorkflowExecutionID: exec.ID()})
	exec.Callbacks().BeforeWorkflowExecution(ctx, event)
	logger.Info("workflow started", "workflow", w.name)

	output, err := w.component.Run(ctx, props)

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	if err != nil {
		exec.Send(&message.Error{Error: err.Error()})
	}
	exec.Send(&message.End{})

	if len(opts.Metadata) > 0 {
		manager.AddMetadata(checkpoint.RootID, opts.Metadata)
	}
	if err != nil {
		manager.AddMetadata(checkpoint.RootID, map[string]any{"error": errorMetadata(err)})
		manager.CompleteNode(checkpoint.RootID, nil)
	} else {
		manager.CompleteNode(checkpoint.RootID, output)
	}
	if opts.StateStore != nil {
		key := path.Join("objects", exec.ID())
		if storeErr := opts.StateStore.Put(ctx, key, exec.Publisher().Snapshot()); storeErr != nil {
			logger.Error("failed to store object state", "key", key, "error", storeErr)
		}
	}

	manager.Write()
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.CheckpointWait)
	if waitErr := manager.Wait(waitCtx); waitErr != nil {
		logger.Warn("checkpoint writes still pending", "error", waitErr)
	}
	cancel()

	event.Steps = manager.Snapshot().Steps
	if err != nil {
		err = &WorkflowError{Workflow: w.name, ExecutionID: exec.ID(), Err: err}
		event.Status = ExecutionStatusFailed
		event.Error = err
		logger.Error("workflow failed", "workflow", w.name, "error", err, "duration", event.Duration)
	} else {
		event.Status = ExecutionStatusCompleted
		event.Output = output
		logger.Info("workflow completed", "workflow", w.name, "duration", event.Duration)
	}
	exec.Callbacks().AfterWorkflowExecution(ctx, event)

	if err != nil {
		var zero R
		return zero, err
	}
	return output, nil
}

// RunObjects loads the object state stored for an execution by a run with
// a StateStore.
func RunObjects(ctx context.Context, store blob.Store, executionID string) (map[string]any, error) {
	var objects map[string]any
	if err := store.Get(ctx, path.Join("objects", executionID), &objects); err != nil {
		return nil, fmt.Errorf("failed to load object state: %w", err)
	}
	return objects, nil
}
