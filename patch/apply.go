package patch

import (
	"errors"
	"fmt"
)

// Apply applies the patch to doc and returns the resulting document. The
// input document is not modified. Operations are applied in order; the first
// operation that cannot be applied aborts the whole patch with an *Error, and
// no partial result is returned.
func Apply(doc any, p Patch) (any, error) {
	current, err := Normalize(doc)
	if err != nil {
		return nil, err
	}
	for _, op := range p {
		current, err = applyOperation(current, op)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// applyOperation applies a single operation to a normalized document that
// the caller owns. The document may be modified in place.
func applyOperation(doc any, op Operation) (any, error) {
	tokens, err := ParsePointer(op.Path)
	if err != nil {
		return nil, &Error{Op: op.Op, Path: op.Path, Err: err}
	}
	result, err := dispatch(doc, tokens, op)
	if err != nil {
		return nil, &Error{Op: op.Op, Path: op.Path, Err: err}
	}
	return result, nil
}

func dispatch(doc any, tokens []string, op Operation) (any, error) {
	switch op.Op {
	case OpAdd:
		value, err := Normalize(op.Value)
		if err != nil {
			return nil, err
		}
		return addValue(doc, tokens, value)
	case OpRemove:
		updated, _, err := removeValue(doc, tokens)
		return updated, err
	case OpReplace:
		value, err := Normalize(op.Value)
		if err != nil {
			return nil, err
		}
		return replaceValue(doc, tokens, value)
	case OpMove:
		if isPrefixPointer(op.From, op.Path) {
			if op.From == op.Path {
				return doc, nil
			}
			return nil, fmt.Errorf("%w: cannot move %q into its own child", ErrInvalidOperation, op.From)
		}
		fromTokens, err := ParsePointer(op.From)
		if err != nil {
			return nil, err
		}
		updated, value, err := removeValue(doc, fromTokens)
		if err != nil {
			return nil, fmt.Errorf("from %q: %w", op.From, err)
		}
		return addValue(updated, tokens, value)
	case OpCopy:
		fromTokens, err := ParsePointer(op.From)
		if err != nil {
			return nil, err
		}
		value, err := getValue(doc, fromTokens)
		if err != nil {
			return nil, fmt.Errorf("from %q: %w", op.From, err)
		}
		return addValue(doc, tokens, clone(value))
	case OpTest:
		expected, err := Normalize(op.Value)
		if err != nil {
			return nil, err
		}
		actual, err := getValue(doc, tokens)
		if err != nil {
			return nil, err
		}
		if !Equal(actual, expected) {
			return nil, ErrTestFailed
		}
		return doc, nil
	case OpStringAppend:
		suffix, ok := op.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: string-append value must be a string", ErrInvalidOperation)
		}
		return updateString(doc, tokens, func(s string) (string, error) {
			return s + suffix, nil
		})
	case OpStringDiff:
		return updateString(doc, tokens, func(s string) (string, error) {
			return ApplyStringDiff(s, op.Diff)
		})
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrInvalidOperation, op.Op)
	}
}

// getValue resolves tokens against doc.
func getValue(doc any, tokens []string) (any, error) {
	current := doc
	for _, token := range tokens {
		switch node := current.(type) {
		case map[string]any:
			child, ok := node[token]
			if !ok {
				return nil, ErrPathNotFound
			}
			current = child
		case []any:
			index, err := parseIndex(token, len(node)-1)
			if err != nil {
				return nil, err
			}
			current = node[index]
		default:
			return nil, ErrPathNotFound
		}
	}
	return current, nil
}

// mutate walks doc to the container addressed by all but the last token and
// replaces that container with the result of fn. It returns the updated
// document.
func mutate(doc any, tokens []string, fn func(container any, key string) (any, error)) (any, error) {
	if len(tokens) == 1 {
		return fn(doc, tokens[0])
	}
	switch node := doc.(type) {
	case map[string]any:
		child, ok := node[tokens[0]]
		if !ok {
			return nil, ErrPathNotFound
		}
		updated, err := mutate(child, tokens[1:], fn)
		if err != nil {
			return nil, err
		}
		node[tokens[0]] = updated
		return node, nil
	case []any:
		index, err := parseIndex(tokens[0], len(node)-1)
		if err != nil {
			return nil, err
		}
		updated, err := mutate(node[index], tokens[1:], fn)
		if err != nil {
			return nil, err
		}
		node[index] = updated
		return node, nil
	default:
		return nil, ErrPathNotFound
	}
}

func addValue(doc any, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return mutate(doc, tokens, func(container any, key string) (any, error) {
		switch node := container.(type) {
		case map[string]any:
			node[key] = value
			return node, nil
		case []any:
			if key == "-" {
				return append(node, value), nil
			}
			index, err := parseIndex(key, len(node))
			if err != nil {
				return nil, err
			}
			node = append(node, nil)
			copy(node[index+1:], node[index:])
			node[index] = value
			return node, nil
		default:
			return nil, ErrPathNotFound
		}
	})
}

func removeValue(doc any, tokens []string) (any, any, error) {
	if len(tokens) == 0 {
		return nil, doc, nil
	}
	var removed any
	updated, err := mutate(doc, tokens, func(container any, key string) (any, error) {
		switch node := container.(type) {
		case map[string]any:
			value, ok := node[key]
			if !ok {
				return nil, ErrPathNotFound
			}
			removed = value
			delete(node, key)
			return node, nil
		case []any:
			index, err := parseIndex(key, len(node)-1)
			if err != nil {
				return nil, err
			}
			removed = node[index]
			return append(node[:index], node[index+1:]...), nil
		default:
			return nil, ErrPathNotFound
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, removed, nil
}

func replaceValue(doc any, tokens []string, value any) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return mutate(doc, tokens, func(container any, key string) (any, error) {
		switch node := container.(type) {
		case map[string]any:
			if _, ok := node[key]; !ok {
				return nil, ErrPathNotFound
			}
			node[key] = value
			return node, nil
		case []any:
			index, err := parseIndex(key, len(node)-1)
			if err != nil {
				return nil, err
			}
			node[index] = value
			return node, nil
		default:
			return nil, ErrPathNotFound
		}
	})
}

// updateString rewrites the string at tokens. A missing or null target is
// treated as the empty string; any other non-string target is an error.
func updateString(doc any, tokens []string, fn func(string) (string, error)) (any, error) {
	current, err := getValue(doc, tokens)
	if err != nil && !errors.Is(err, ErrPathNotFound) {
		return nil, err
	}
	var source string
	switch v := current.(type) {
	case nil:
	case string:
		source = v
	default:
		return nil, fmt.Errorf("%w: found %s", ErrNotString, typeName(current))
	}
	result, err := fn(source)
	if err != nil {
		return nil, err
	}
	return addOrReplaceString(doc, tokens, result)
}

func addOrReplaceString(doc any, tokens []string, value string) (any, error) {
	if len(tokens) == 0 {
		return value, nil
	}
	return mutate(doc, tokens, func(container any, key string) (any, error) {
		switch node := container.(type) {
		case map[string]any:
			node[key] = value
			return node, nil
		case []any:
			if key == "-" {
				return append(node, value), nil
			}
			index, err := parseIndex(key, len(node))
			if err != nil {
				return nil, err
			}
			if index == len(node) {
				return append(node, value), nil
			}
			node[index] = value
			return node, nil
		default:
			return nil, ErrPathNotFound
		}
	})
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}
