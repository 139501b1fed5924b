package script

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/modules/all"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
)

// RisorScript is a compiled Risor program.
type RisorScript struct {
	compiler *RisorCompiler
	code     *compiler.Code
}

// Evaluate runs the script. globals are layered over the compiler's
// globals; their names must have been known when the script was compiled.
func (s *RisorScript) Evaluate(ctx context.Context, globals map[string]any) (Value, error) {
	combined := maps.Clone(s.compiler.globals)
	maps.Copy(combined, globals)
	value, err := risor.EvalCode(ctx, s.code, risor.WithGlobals(combined))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate risor script: %w", err)
	}
	return &RisorValue{obj: value}, nil
}

// RisorCompiler compiles Risor source against a fixed set of global names.
type RisorCompiler struct {
	globals map[string]any
}

func NewRisorCompiler(globals map[string]any) *RisorCompiler {
	if globals == nil {
		globals = map[string]any{}
	}
	return &RisorCompiler{globals: globals}
}

func (c *RisorCompiler) Compile(ctx context.Context, code string) (Script, error) {
	ast, err := parser.Parse(ctx, code)
	if err != nil {
		return nil, err
	}
	globalNames := slices.Sorted(maps.Keys(c.globals))
	compiledCode, err := compiler.Compile(ast, compiler.WithGlobalNames(globalNames))
	if err != nil {
		return nil, err
	}
	return &RisorScript{compiler: c, code: compiledCode}, nil
}

// RisorValue wraps a Risor evaluation result.
type RisorValue struct {
	obj object.Object
}

func (value *RisorValue) Value() any {
	return jsonValue(value.obj)
}

func (value *RisorValue) IsTruthy() bool {
	return truthy(value.obj)
}

func (value *RisorValue) String() string {
	switch v := value.obj.(type) {
	case *object.String:
		return v.Value()
	case *object.Int:
		return fmt.Sprintf("%d", v.Value())
	case *object.Float:
		return fmt.Sprintf("%g", v.Value())
	case *object.Bool:
		return fmt.Sprintf("%t", v.Value())
	case *object.Time:
		return v.Value().Format(time.RFC3339)
	case *object.NilType:
		return ""
	case *object.List:
		// Double newline between each item
		var items []string
		for _, item := range v.Value() {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return strings.Join(items, "\n\n")
	case *object.Map:
		var items []string
		for _, k := range slices.Sorted(maps.Keys(v.Value())) {
			items = append(items, fmt.Sprintf("%s: %v", k, v.Value()[k]))
		}
		return strings.Join(items, "\n\n")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", value.obj)
	}
}

// DefaultRisorGlobals returns every Risor builtin plus an empty props map,
// so scripts compiled with it may refer to props.
func DefaultRisorGlobals() map[string]any {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		globals[name] = value
	}
	globals["props"] = object.NewMap(map[string]object.Object{})
	return globals
}

// SafeRisorGlobals is like DefaultRisorGlobals but only includes builtins
// that are deterministic and have no side effects.
func SafeRisorGlobals() map[string]any {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		if safeBuiltins[name] {
			globals[name] = value
		}
	}
	globals["props"] = object.NewMap(map[string]object.Object{})
	return globals
}
