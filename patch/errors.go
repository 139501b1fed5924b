package patch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPointer   = errors.New("invalid json pointer")
	ErrPathNotFound     = errors.New("path not found")
	ErrInvalidIndex     = errors.New("invalid array index")
	ErrNotString        = errors.New("target is not a string")
	ErrTestFailed       = errors.New("test failed")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInvalidDiff      = errors.New("invalid string diff")
)

// Error describes an operation that could not be applied.
type Error struct {
	Op   OpType
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" && e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
