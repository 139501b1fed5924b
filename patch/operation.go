package patch

import (
	"encoding/json"
	"fmt"
)

// OpType identifies the kind of a patch operation.
type OpType string

const (
	OpAdd          OpType = "add"
	OpRemove       OpType = "remove"
	OpReplace      OpType = "replace"
	OpMove         OpType = "move"
	OpCopy         OpType = "copy"
	OpTest         OpType = "test"
	OpStringAppend OpType = "string-append"
	OpStringDiff   OpType = "string-diff"
)

// SegmentType identifies one step of a character-level string transform.
type SegmentType string

const (
	SegmentRetain SegmentType = "retain"
	SegmentInsert SegmentType = "insert"
	SegmentDelete SegmentType = "delete"
)

// Segment is one step of a string-diff operation. Counts are measured in
// Unicode code points.
type Segment struct {
	Type  SegmentType `json:"type"`
	Count int         `json:"count,omitempty"`
	Value string      `json:"value,omitempty"`
}

// Operation is a single patch step. Which fields are meaningful depends on
// Op: add/replace/test use Value, move/copy use From, string-append uses a
// string Value and string-diff uses Diff.
type Operation struct {
	Op    OpType
	Path  string
	From  string
	Value any
	Diff  []Segment
}

// Patch is an ordered list of operations.
type Patch []Operation

// Add returns an add operation.
func Add(path string, value any) Operation {
	return Operation{Op: OpAdd, Path: path, Value: value}
}

// Remove returns a remove operation.
func Remove(path string) Operation {
	return Operation{Op: OpRemove, Path: path}
}

// Replace returns a replace operation.
func Replace(path string, value any) Operation {
	return Operation{Op: OpReplace, Path: path, Value: value}
}

// StringAppend returns a string-append operation.
func StringAppend(path, suffix string) Operation {
	return Operation{Op: OpStringAppend, Path: path, Value: suffix}
}

// StringDiff returns a string-diff operation.
func StringDiff(path string, segments []Segment) Operation {
	return Operation{Op: OpStringDiff, Path: path, Diff: segments}
}

type valueOp struct {
	Op    OpType `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

type pathOp struct {
	Op   OpType `json:"op"`
	Path string `json:"path"`
}

type fromOp struct {
	Op   OpType `json:"op"`
	Path string `json:"path"`
	From string `json:"from"`
}

type diffOp struct {
	Op   OpType    `json:"op"`
	Path string    `json:"path"`
	Diff []Segment `json:"diff"`
}

// MarshalJSON encodes the operation using only the fields its kind defines,
// so a null value is written as "value": null rather than dropped.
func (o Operation) MarshalJSON() ([]byte, error) {
	switch o.Op {
	case OpAdd, OpReplace, OpTest:
		return json.Marshal(valueOp{Op: o.Op, Path: o.Path, Value: o.Value})
	case OpRemove:
		return json.Marshal(pathOp{Op: o.Op, Path: o.Path})
	case OpMove, OpCopy:
		return json.Marshal(fromOp{Op: o.Op, Path: o.Path, From: o.From})
	case OpStringAppend:
		s, ok := o.Value.(string)
		if !ok {
			return nil, fmt.Errorf("string-append at %q: value must be a string, got %T", o.Path, o.Value)
		}
		return json.Marshal(valueOp{Op: o.Op, Path: o.Path, Value: s})
	case OpStringDiff:
		segments := o.Diff
		if segments == nil {
			segments = []Segment{}
		}
		return json.Marshal(diffOp{Op: o.Op, Path: o.Path, Diff: segments})
	default:
		return nil, fmt.Errorf("unknown patch operation %q", o.Op)
	}
}

// UnmarshalJSON decodes an operation and checks that the fields required by
// its kind are present.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op    OpType          `json:"op"`
		Path  *string         `json:"path"`
		From  *string         `json:"from"`
		Value json.RawMessage `json:"value"`
		Diff  []Segment       `json:"diff"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Path == nil {
		return &Error{Op: raw.Op, Err: fmt.Errorf("%w: missing path", ErrInvalidOperation)}
	}
	op := Operation{Op: raw.Op, Path: *raw.Path}
	switch raw.Op {
	case OpAdd, OpReplace, OpTest, OpStringAppend:
		if raw.Value == nil {
			return &Error{Op: raw.Op, Path: op.Path, Err: fmt.Errorf("%w: missing value", ErrInvalidOperation)}
		}
		var value any
		if err := json.Unmarshal(raw.Value, &value); err != nil {
			return err
		}
		if raw.Op == OpStringAppend {
			if _, ok := value.(string); !ok {
				return &Error{Op: raw.Op, Path: op.Path, Err: fmt.Errorf("%w: value must be a string", ErrInvalidOperation)}
			}
		}
		op.Value = value
	case OpRemove:
	case OpMove, OpCopy:
		if raw.From == nil {
			return &Error{Op: raw.Op, Path: op.Path, Err: fmt.Errorf("%w: missing from", ErrInvalidOperation)}
		}
		op.From = *raw.From
	case OpStringDiff:
		if raw.Diff == nil {
			return &Error{Op: raw.Op, Path: op.Path, Err: fmt.Errorf("%w: missing diff", ErrInvalidOperation)}
		}
		op.Diff = raw.Diff
	default:
		return &Error{Op: raw.Op, Path: op.Path, Err: fmt.Errorf("%w: unknown op", ErrInvalidOperation)}
	}
	*o = op
	return nil
}

// EncodedSize returns the length of the operation's JSON encoding.
func (o Operation) EncodedSize() int {
	data, err := json.Marshal(o)
	if err != nil {
		return 0
	}
	return len(data)
}
