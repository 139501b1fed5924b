package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/deepnoodle-ai/weave/blob"
)

// StoreWriter persists the latest snapshot of each execution in a blob
// store under checkpoints/<execution id>.
type StoreWriter struct {
	store  blob.Store
	prefix string
}

// NewStoreWriter creates a writer backed by store.
func NewStoreWriter(store blob.Store) *StoreWriter {
	return &StoreWriter{store: store, prefix: "checkpoints"}
}

func (w *StoreWriter) key(executionID string) string {
	return path.Join(w.prefix, executionID)
}

func (w *StoreWriter) Write(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.ExecutionID == "" {
		return errors.New("snapshot has no execution id")
	}
	if err := w.store.Put(ctx, w.key(snapshot.ExecutionID), snapshot); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

func (w *StoreWriter) Load(ctx context.Context, executionID string) (*Snapshot, error) {
	var snapshot Snapshot
	if err := w.store.Get(ctx, w.key(executionID), &snapshot); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &snapshot, nil
}

// ListExecutions summarizes every execution in the store.
func (w *StoreWriter) ListExecutions(ctx context.Context) ([]*ExecutionSummary, error) {
	keys, err := w.store.List(ctx, w.prefix+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	summaries := make([]*ExecutionSummary, 0, len(keys))
	for _, key := range keys {
		snapshot, err := w.Load(ctx, path.Base(key))
		if err != nil {
			continue
		}
		summaries = append(summaries, Summarize(snapshot))
	}
	sortSummaries(summaries)
	return summaries, nil
}

func (w *StoreWriter) Delete(ctx context.Context, executionID string) error {
	return w.store.Delete(ctx, w.key(executionID))
}
