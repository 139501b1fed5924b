package patch

import (
	"fmt"

	"github.com/wI2L/jsondiff"
)

type diffOptions struct {
	factorize     bool
	optimize      bool
	diffThreshold int
}

// DiffOption customizes Diff.
type DiffOption func(*diffOptions)

// WithFactorize enables move and copy detection. Arrays are still compared
// positionally.
func WithFactorize() DiffOption {
	return func(o *diffOptions) {
		o.factorize = true
	}
}

// WithoutStringOptimization emits plain replace operations for strings.
func WithoutStringOptimization() DiffOption {
	return func(o *diffOptions) {
		o.optimize = false
	}
}

// WithStringDiffThreshold sets the minimum old string length, in
// characters, above which a string-diff may be emitted.
func WithStringDiffThreshold(n int) DiffOption {
	return func(o *diffOptions) {
		o.diffThreshold = n
	}
}

// Diff computes a patch that transforms old into new. Both values are
// normalized to the JSON value model first. Equal inputs produce an empty
// patch. String replacements are rewritten into string-append or
// string-diff operations where that is smaller.
func Diff(old, new any, opts ...DiffOption) (Patch, error) {
	options := diffOptions{optimize: true, diffThreshold: DefaultStringDiffThreshold}
	for _, opt := range opts {
		opt(&options)
	}

	source, err := Normalize(old)
	if err != nil {
		return nil, fmt.Errorf("diff source: %w", err)
	}
	target, err := Normalize(new)
	if err != nil {
		return nil, fmt.Errorf("diff target: %w", err)
	}
	if Equal(source, target) {
		return Patch{}, nil
	}

	var compareOpts []jsondiff.Option
	if options.factorize {
		compareOpts = append(compareOpts, jsondiff.Factorize())
	}
	structural, err := jsondiff.Compare(source, target, compareOpts...)
	if err != nil {
		return nil, fmt.Errorf("structural diff: %w", err)
	}

	// Replay each operation onto a working copy so the old value at every
	// replace path reflects the operations that came before it.
	working := clone(source)
	result := make(Patch, 0, len(structural))
	for _, raw := range structural {
		op := Operation{
			Op:    OpType(raw.Type),
			Path:  string(raw.Path),
			From:  string(raw.From),
			Value: raw.Value,
		}
		emit := op
		keep := true
		if options.optimize && op.Op == OpReplace {
			if _, isString := op.Value.(string); isString {
				tokens, err := ParsePointer(op.Path)
				if err != nil {
					return nil, &Error{Op: op.Op, Path: op.Path, Err: err}
				}
				previous, _ := getValue(working, tokens)
				emit, keep = OptimizeStringReplace(op, previous, options.diffThreshold)
			}
		}
		working, err = applyOperation(working, op)
		if err != nil {
			return nil, err
		}
		if keep {
			result = append(result, emit)
		}
	}
	return result, nil
}
