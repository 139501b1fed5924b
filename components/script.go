// Package components provides ready-made weave components.
package components

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/patch"
	"github.com/deepnoodle-ai/weave/script"
)

// defaultCompiler is used when the context carries no compiler.
var defaultCompiler = script.NewRisorCompiler(script.DefaultRisorGlobals())

func compilerFor(ctx context.Context) script.Compiler {
	if compiler, ok := weave.CompilerFromContext(ctx); ok {
		return compiler
	}
	return defaultCompiler
}

// NewScript returns a component that evaluates a Risor script. The props
// are available to the script as props and the script's result is the
// component's output. The script is compiled on each run with the
// compiler carried in the context, if any.
func NewScript(name, code string, opts ...weave.ComponentOption) *weave.Component[map[string]any, any] {
	return weave.NewComponent(name, func(ctx context.Context, props map[string]any) (any, error) {
		compiled, err := compilerFor(ctx).Compile(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to compile script: %w", err)
		}
		globals, err := scriptGlobals(props)
		if err != nil {
			return nil, err
		}
		result, err := compiled.Evaluate(ctx, globals)
		if err != nil {
			return nil, fmt.Errorf("failed to execute script: %w", err)
		}
		return result.Value(), nil
	}, opts...)
}

// NewTemplate returns a component that renders a string containing ${...}
// expressions against its props.
func NewTemplate(name, text string, opts ...weave.ComponentOption) *weave.Component[map[string]any, string] {
	return weave.NewComponent(name, func(ctx context.Context, props map[string]any) (string, error) {
		tmpl, err := script.NewTemplate(compilerFor(ctx), text)
		if err != nil {
			return "", err
		}
		globals, err := scriptGlobals(props)
		if err != nil {
			return "", err
		}
		return tmpl.Eval(ctx, globals)
	}, opts...)
}

func scriptGlobals(props map[string]any) (map[string]any, error) {
	normalized, err := patch.Normalize(props)
	if err != nil {
		return nil, fmt.Errorf("invalid script props: %w", err)
	}
	if normalized == nil {
		normalized = map[string]any{}
	}
	return map[string]any{"props": normalized}, nil
}
