package weave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/deepnoodle-ai/weave/script"
)

// ErrContextNotProvided is wrapped by ContextError.
var ErrContextNotProvided = errors.New("context not provided")

// ContextError reports a context kind consumed with no provider and no
// default.
type ContextError struct {
	Kind string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("context %q not provided", e.Kind)
}

func (e *ContextError) Unwrap() error {
	return ErrContextNotProvided
}

// ContextKind is a typed slot for values carried in a context.Context. A
// value provided for a kind is visible to everything run with the returned
// context and its descendants, and to nothing else.
type ContextKind[T any] struct {
	name       string
	def        T
	hasDefault bool
}

type binding[T any] struct {
	value T
}

// NewContextKind creates a kind with no default. Consuming it where no
// value was provided is an error.
func NewContextKind[T any](name string) *ContextKind[T] {
	return &ContextKind[T]{name: name}
}

// NewContextKindWithDefault creates a kind that falls back to def.
func NewContextKindWithDefault[T any](name string, def T) *ContextKind[T] {
	return &ContextKind[T]{name: name, def: def, hasDefault: true}
}

// Name returns the kind's name.
func (k *ContextKind[T]) Name() string {
	return k.name
}

// Provide returns a copy of ctx in which the kind is bound to value.
func (k *ContextKind[T]) Provide(ctx context.Context, value T) context.Context {
	return context.WithValue(ctx, k, binding[T]{value: value})
}

// Consume returns the nearest value provided for the kind, or its default.
func (k *ContextKind[T]) Consume(ctx context.Context) (T, error) {
	if b, ok := ctx.Value(k).(binding[T]); ok {
		return b.value, nil
	}
	if k.hasDefault {
		return k.def, nil
	}
	var zero T
	return zero, &ContextError{Kind: k.name}
}

// MustConsume is like Consume but panics if no value is available.
func (k *ContextKind[T]) MustConsume(ctx context.Context) T {
	value, err := k.Consume(ctx)
	if err != nil {
		panic(err)
	}
	return value
}

// Scope runs fn with the kind bound to value.
func (k *ContextKind[T]) Scope(ctx context.Context, value T, fn func(ctx context.Context) error) error {
	return fn(k.Provide(ctx, value))
}

var (
	loggerKind   = NewContextKind[*slog.Logger]("logger")
	compilerKind = NewContextKind[script.Compiler]("compiler")
)

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return loggerKind.Provide(ctx, logger)
}

// LoggerFromContext returns the logger carried in ctx, the current
// execution's logger, or a logger that discards everything.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, err := loggerKind.Consume(ctx); err == nil && logger != nil {
		return logger
	}
	if exec, err := CurrentExecution(ctx); err == nil {
		return exec.Logger()
	}
	return slog.New(slog.DiscardHandler)
}

// WithCompiler returns a context carrying a script compiler.
func WithCompiler(ctx context.Context, compiler script.Compiler) context.Context {
	return compilerKind.Provide(ctx, compiler)
}

// CompilerFromContext returns the script compiler carried in ctx.
func CompilerFromContext(ctx context.Context) (script.Compiler, bool) {
	compiler, err := compilerKind.Consume(ctx)
	return compiler, err == nil && compiler != nil
}
