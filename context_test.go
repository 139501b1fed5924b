package weave

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/deepnoodle-ai/weave/script"
	"github.com/stretchr/testify/require"
)

func TestContextKindProvideConsume(t *testing.T) {
	kind := NewContextKind[string]("user")
	ctx := context.Background()

	_, err := kind.Consume(ctx)
	require.ErrorIs(t, err, ErrContextNotProvided)
	var ctxErr *ContextError
	require.ErrorAs(t, err, &ctxErr)
	require.Equal(t, "user", ctxErr.Kind)
	require.Equal(t, `context "user" not provided`, err.Error())
	require.Panics(t, func() { kind.MustConsume(ctx) })

	outer := kind.Provide(ctx, "alice")
	inner := kind.Provide(outer, "bob")
	require.Equal(t, "alice", kind.MustConsume(outer))
	require.Equal(t, "bob", kind.MustConsume(inner))

	// Siblings do not see each other's bindings.
	sibling := kind.Provide(outer, "carol")
	require.Equal(t, "carol", kind.MustConsume(sibling))
	require.Equal(t, "bob", kind.MustConsume(inner))
}

func TestContextKindDefault(t *testing.T) {
	kind := NewContextKindWithDefault("model", "small")
	ctx := context.Background()

	value, err := kind.Consume(ctx)
	require.NoError(t, err)
	require.Equal(t, "small", value)

	err = kind.Scope(ctx, "large", func(ctx context.Context) error {
		require.Equal(t, "large", kind.MustConsume(ctx))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "small", kind.MustConsume(ctx))
}

func TestContextKindsAreDistinct(t *testing.T) {
	a := NewContextKind[string]("same")
	b := NewContextKind[string]("same")
	ctx := a.Provide(context.Background(), "a")

	_, err := b.Consume(ctx)
	require.ErrorIs(t, err, ErrContextNotProvided)
}

func TestContextKindNilInterface(t *testing.T) {
	kind := NewContextKind[error]("err")
	ctx := kind.Provide(context.Background(), nil)
	value, err := kind.Consume(ctx)
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestContextIsolationAcrossExecutions(t *testing.T) {
	kind := NewContextKind[int]("request")
	child := NewComponent("Child", func(ctx context.Context, _ struct{}) (int, error) {
		time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
		return kind.Consume(ctx)
	})
	wf := NewWorkflow("isolated", func(ctx context.Context, props int) (int, error) {
		var seen int
		err := kind.Scope(ctx, props, func(ctx context.Context) error {
			time.Sleep(time.Duration(rand.IntN(3)) * time.Millisecond)
			got, err := child.Run(ctx, struct{}{})
			seen = got
			return err
		})
		return seen, err
	})

	const executions = 50
	var wg sync.WaitGroup
	values := make([]int, executions)
	results := make([]int, executions)
	errs := make([]error, executions)
	for i := 0; i < executions; i++ {
		values[i] = rand.Int()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = wf.Run(context.Background(), values[i], RunOptions{})
		}(i)
	}
	wg.Wait()
	for i := range values {
		require.NoError(t, errs[i], "execution %d", i)
		require.Equal(t, values[i], results[i], "execution %d", i)
	}
}

func TestLoggerFromContext(t *testing.T) {
	ctx := context.Background()
	require.NotNil(t, LoggerFromContext(ctx))

	logger := NewJSONLogger()
	require.Same(t, logger, LoggerFromContext(WithLogger(ctx, logger)))

	exec := NewExecutionContext(ExecutionOptions{Logger: logger})
	require.Same(t, exec.Logger(), LoggerFromContext(WithExecution(ctx, exec)))
}

func TestCompilerFromContext(t *testing.T) {
	_, ok := CompilerFromContext(context.Background())
	require.False(t, ok)

	compiler := script.NewRisorCompiler(script.DefaultRisorGlobals())
	got, ok := CompilerFromContext(WithCompiler(context.Background(), compiler))
	require.True(t, ok)
	require.Same(t, compiler, got)
}
