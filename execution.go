// Package weave composes tree-structured computations ("components") into
// workflows. Every execution streams workflow messages to its sinks,
// publishes incremental object state and records a checkpoint tree of the
// component invocations it made.
package weave

import (
	"context"
	"log/slog"
	"sync"

	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
	"github.com/deepnoodle-ai/weave/state"
	"go.jetify.com/typeid"
)

// NewExecutionID returns a new unique execution identifier
func NewExecutionID() string {
	id, err := typeid.WithPrefix("exec")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ExecutionOptions configures a new execution context
type ExecutionOptions struct {
	ExecutionID      string
	WorkflowName     string
	Sinks            []message.Sink
	CheckpointWriter checkpoint.Writer
	Logger           *slog.Logger
	Callbacks        ExecutionCallbacks
	DiffOptions      []patch.DiffOption
}

// ExecutionContext holds everything one execution owns: its message bus,
// its object state and its checkpoint tree. Nothing in it is shared with
// other executions.
type ExecutionContext struct {
	id           string
	workflowName string
	bus          *message.Bus
	publisher    *state.Publisher
	checkpoints  *checkpoint.Manager
	logger       *slog.Logger
	callbacks    ExecutionCallbacks

	// publishMutex keeps object messages in the order their diffs were
	// computed.
	publishMutex sync.Mutex
}

// NewExecutionContext creates a fresh execution context.
func NewExecutionContext(opts ExecutionOptions) *ExecutionContext {
	if opts.ExecutionID == "" {
		opts.ExecutionID = NewExecutionID()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Callbacks == nil {
		opts.Callbacks = &BaseExecutionCallbacks{}
	}
	if opts.CheckpointWriter == nil {
		opts.CheckpointWriter = checkpoint.NewNullWriter()
	}
	logger := opts.Logger.With("execution_id", opts.ExecutionID)
	return &ExecutionContext{
		id:           opts.ExecutionID,
		workflowName: opts.WorkflowName,
		bus:          message.NewBus(logger, opts.Sinks...),
		publisher:    state.NewPublisher(opts.DiffOptions...),
		checkpoints: checkpoint.NewManager(checkpoint.Options{
			ExecutionID:  opts.ExecutionID,
			WorkflowName: opts.WorkflowName,
			Writer:       opts.CheckpointWriter,
			Logger:       opts.Logger,
		}),
		logger:    logger,
		callbacks: opts.Callbacks,
	}
}

// ID returns the execution ID
func (e *ExecutionContext) ID() string {
	return e.id
}

func (e *ExecutionContext) WorkflowName() string {
	return e.workflowName
}

func (e *ExecutionContext) Bus() *message.Bus {
	return e.bus
}

func (e *ExecutionContext) Publisher() *state.Publisher {
	return e.publisher
}

func (e *ExecutionContext) Checkpoints() *checkpoint.Manager {
	return e.checkpoints
}

func (e *ExecutionContext) Logger() *slog.Logger {
	return e.logger
}

func (e *ExecutionContext) Callbacks() ExecutionCallbacks {
	return e.callbacks
}

// Send delivers a message to the execution's sinks.
func (e *ExecutionContext) Send(msg message.Message) {
	e.bus.Send(msg)
}

// publish diffs value against the label's previous state and sends the
// result while holding publishMutex.
func (e *ExecutionContext) publish(label string, value any) error {
	e.publishMutex.Lock()
	defer e.publishMutex.Unlock()
	msg, err := e.publisher.Publish(label, value)
	if err != nil {
		return err
	}
	if msg != nil {
		e.bus.Send(msg)
	}
	return nil
}

func (e *ExecutionContext) resync(label string) error {
	e.publishMutex.Lock()
	defer e.publishMutex.Unlock()
	msg, err := e.publisher.Resync(label)
	if err != nil {
		return err
	}
	if msg != nil {
		e.bus.Send(msg)
	}
	return nil
}

var executionKind = NewContextKind[*ExecutionContext]("execution")

// WithExecution returns a context in which exec is the current execution.
func WithExecution(ctx context.Context, exec *ExecutionContext) context.Context {
	return executionKind.Provide(ctx, exec)
}

// CurrentExecution returns the execution the calling component runs in.
// Outside of any execution it returns a *ContextError.
func CurrentExecution(ctx context.Context) (*ExecutionContext, error) {
	exec, err := executionKind.Consume(ctx)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, &ContextError{Kind: executionKind.Name()}
	}
	return exec, nil
}
