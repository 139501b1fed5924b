package script

import (
	"cmp"
	"slices"
	"time"

	"github.com/risor-io/risor/object"
)

// jsonValue converts a Risor object into a value that encodes as JSON.
// Times become RFC 3339 strings, byte slices become strings and sets
// become lists ordered by their printed form. Objects with no JSON
// equivalent, such as functions, are represented by their printed form.
func jsonValue(obj object.Object) any {
	switch o := obj.(type) {
	case nil, *object.NilType:
		return nil
	case *object.String:
		return o.Value()
	case *object.Int:
		return o.Value()
	case *object.Float:
		return o.Value()
	case *object.Bool:
		return o.Value()
	case *object.Time:
		return o.Value().Format(time.RFC3339Nano)
	case *object.ByteSlice:
		return string(o.Value())
	case *object.List:
		items := o.Value()
		result := make([]any, len(items))
		for i, item := range items {
			result[i] = jsonValue(item)
		}
		return result
	case *object.Map:
		result := make(map[string]any, len(o.Value()))
		for key, value := range o.Value() {
			result[key] = jsonValue(value)
		}
		return result
	case *object.Set:
		items := make([]object.Object, 0, len(o.Value()))
		for _, item := range o.Value() {
			items = append(items, item)
		}
		slices.SortFunc(items, func(a, b object.Object) int {
			return cmp.Compare(a.Inspect(), b.Inspect())
		})
		result := make([]any, len(items))
		for i, item := range items {
			result[i] = jsonValue(item)
		}
		return result
	default:
		return obj.Inspect()
	}
}

// truthy follows Risor's truthiness, except that the string "false" is
// false so rendered booleans round-trip.
func truthy(obj object.Object) bool {
	if s, ok := obj.(*object.String); ok {
		return s.Value() != "" && s.Value() != "false"
	}
	if obj == nil {
		return false
	}
	return obj.IsTruthy()
}

// safeBuiltins are the Risor builtins that are deterministic and have no
// side effects.
var safeBuiltins = map[string]bool{
	"all": true, "any": true, "base64": true, "bool": true,
	"buffer": true, "byte_slice": true, "byte": true, "bytes": true,
	"call": true, "chunk": true, "coalesce": true, "decode": true,
	"encode": true, "error": true, "errorf": true, "errors": true,
	"filepath": true, "float_slice": true, "float": true, "fmt": true,
	"getattr": true, "int": true, "is_hashable": true, "iter": true,
	"json": true, "keys": true, "len": true, "list": true,
	"map": true, "math": true, "regexp": true, "reversed": true,
	"set": true, "sorted": true, "sprintf": true, "string": true,
	"strings": true, "try": true, "type": true,
}
