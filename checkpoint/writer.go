package checkpoint

import (
	"context"
	"errors"
)

// Writer persists snapshots of an execution tree.
type Writer interface {
	// Write saves the snapshot, replacing any earlier one for the same
	// execution.
	Write(ctx context.Context, snapshot *Snapshot) error
}

// Loader reads persisted snapshots back.
type Loader interface {
	// Load returns the latest snapshot for an execution.
	Load(ctx context.Context, executionID string) (*Snapshot, error)
}

// ErrNotFound is returned by loaders when no snapshot exists.
var ErrNotFound = errors.New("checkpoint not found")

// WriterFunc adapts a function to the Writer interface.
type WriterFunc func(ctx context.Context, snapshot *Snapshot) error

func (f WriterFunc) Write(ctx context.Context, snapshot *Snapshot) error {
	return f(ctx, snapshot)
}

// NullWriter is a no-op implementation. A manager using it never schedules
// writes.
type NullWriter struct{}

func NewNullWriter() *NullWriter {
	return &NullWriter{}
}

func (w *NullWriter) Write(ctx context.Context, snapshot *Snapshot) error {
	return nil
}

// MultiWriter writes to each writer in turn and joins their errors.
type MultiWriter []Writer

func (w MultiWriter) Write(ctx context.Context, snapshot *Snapshot) error {
	var errs []error
	for _, writer := range w {
		if err := writer.Write(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
