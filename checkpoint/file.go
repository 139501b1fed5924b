package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"
)

// FileWriter persists snapshots to disk, one directory per execution.
// Every version is kept as checkpoint-<version>.json and latest.json
// points at the newest.
type FileWriter struct {
	dataDir string
}

// NewFileWriter creates a file-based writer. An empty dataDir defaults to
// ~/.weave/executions.
func NewFileWriter(dataDir string) (*FileWriter, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".weave", "executions")
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	return &FileWriter{dataDir: dataDir}, nil
}

// Dir returns the directory snapshots are written to.
func (w *FileWriter) Dir() string {
	return w.dataDir
}

// Write saves the snapshot to disk
func (w *FileWriter) Write(ctx context.Context, snapshot *Snapshot) error {
	if snapshot.ExecutionID == "" {
		return errors.New("snapshot has no execution id")
	}
	executionDir := filepath.Join(w.dataDir, snapshot.ExecutionID)
	if err := os.MkdirAll(executionDir, 0755); err != nil {
		return fmt.Errorf("failed to create execution directory: %w", err)
	}

	checkpointPath := filepath.Join(executionDir, fmt.Sprintf("checkpoint-%d.json", snapshot.Version))
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	if err := os.WriteFile(checkpointPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	latestPath := filepath.Join(executionDir, "latest.json")
	if err := w.updateLatest(checkpointPath, latestPath, data); err != nil {
		return fmt.Errorf("failed to update latest checkpoint: %w", err)
	}
	return nil
}

// Load reads the latest snapshot for an execution
func (w *FileWriter) Load(ctx context.Context, executionID string) (*Snapshot, error) {
	latestPath := filepath.Join(w.dataDir, executionID, "latest.json")
	data, err := os.ReadFile(latestPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("execution %s: %w", executionID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &snapshot, nil
}

// Delete removes all checkpoint data for an execution
func (w *FileWriter) Delete(ctx context.Context, executionID string) error {
	if err := os.RemoveAll(filepath.Join(w.dataDir, executionID)); err != nil {
		return fmt.Errorf("failed to delete execution directory: %w", err)
	}
	return nil
}

// ExecutionSummary provides a summary view of an execution
type ExecutionSummary struct {
	ExecutionID  string        `json:"execution_id"`
	WorkflowName string        `json:"workflow_name"`
	Status       string        `json:"status"`
	Steps        int           `json:"steps"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time,omitzero"`
	Duration     time.Duration `json:"duration"`
}

// ListExecutions returns a summary of every stored execution, newest first
func (w *FileWriter) ListExecutions(ctx context.Context) ([]*ExecutionSummary, error) {
	entries, err := os.ReadDir(w.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ExecutionSummary{}, nil
		}
		return nil, fmt.Errorf("failed to read executions directory: %w", err)
	}

	var summaries []*ExecutionSummary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		snapshot, err := w.Load(ctx, entry.Name())
		if err != nil {
			// Skip executions we can't read
			continue
		}
		summaries = append(summaries, Summarize(snapshot))
	}

	sortSummaries(summaries)
	return summaries, nil
}

// sortSummaries orders summaries newest first.
func sortSummaries(summaries []*ExecutionSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartTime.After(summaries[j].StartTime)
	})
}

// Summarize builds a summary from a snapshot.
func Summarize(snapshot *Snapshot) *ExecutionSummary {
	summary := &ExecutionSummary{
		ExecutionID:  snapshot.ExecutionID,
		WorkflowName: snapshot.WorkflowName,
		Status:       snapshot.Status(),
		Steps:        snapshot.Steps,
		StartTime:    fromMillis(snapshot.StartedAt),
		EndTime:      fromMillis(snapshot.CompletedAt),
	}
	if !summary.EndTime.IsZero() {
		summary.Duration = summary.EndTime.Sub(summary.StartTime)
	} else {
		summary.Duration = fromMillis(snapshot.UpdatedAt).Sub(summary.StartTime)
	}
	return summary
}

// updateLatest points latestPath at the newest checkpoint
func (w *FileWriter) updateLatest(checkpointPath, latestPath string, data []byte) error {
	if _, err := os.Lstat(latestPath); err == nil {
		if err := os.Remove(latestPath); err != nil {
			return fmt.Errorf("failed to remove existing latest checkpoint: %w", err)
		}
	}

	// Windows symlinks need elevated privileges, so copy instead
	if runtime.GOOS == "windows" {
		return os.WriteFile(latestPath, data, 0644)
	}

	rel, err := filepath.Rel(filepath.Dir(latestPath), checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to create relative path: %w", err)
	}
	return os.Symlink(rel, latestPath)
}
