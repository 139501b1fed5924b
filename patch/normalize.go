package patch

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Normalize converts an arbitrary JSON-serializable Go value into the plain
// JSON value model: nil, bool, float64, string, []any and map[string]any.
// The result never aliases the input. Values that cannot be encoded as JSON,
// such as cyclic structures, channels or functions, return an error.
func Normalize(value any) (any, error) {
	if isPlain(value, 0) {
		return clone(value), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("value is not json serializable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("value is not json serializable: %w", err)
	}
	return out, nil
}

// Equal reports whether two normalized values are deeply equal.
func Equal(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// maxPlainDepth bounds the fast path so cyclic maps and slices fall through
// to encoding/json, which reports the cycle as an error.
const maxPlainDepth = 512

// isPlain reports whether value already uses only the JSON value model.
func isPlain(value any, depth int) bool {
	if depth > maxPlainDepth {
		return false
	}
	switch v := value.(type) {
	case nil, bool, float64, string:
		return true
	case []any:
		for _, item := range v {
			if !isPlain(item, depth+1) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, item := range v {
			if !isPlain(item, depth+1) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// clone deep copies a plain JSON value.
func clone(value any) any {
	switch v := value.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = clone(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = clone(item)
		}
		return out
	default:
		return v
	}
}
