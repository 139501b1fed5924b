package checkpoint

import (
	"time"
)

// RootID is the id of the synthetic node every execution tree hangs from.
const RootID = "root"

// SchemaVersion identifies the layout of persisted snapshots.
const SchemaVersion = 2

// Node is one component invocation in a persisted execution tree.
// Timestamps are milliseconds since the Unix epoch.
type Node struct {
	ID            string         `json:"id"`
	ComponentName string         `json:"componentName"`
	ParentID      string         `json:"parentId,omitempty"`
	StartTime     int64          `json:"startTime"`
	EndTime       int64          `json:"endTime,omitempty"`
	Props         any            `json:"props"`
	Output        any            `json:"output,omitempty"`
	Children      []*Node        `json:"children"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Completed reports whether the node has an end time.
func (n *Node) Completed() bool {
	return n.EndTime != 0
}

// Duration returns the node's run time, or zero if it is still running.
func (n *Node) Duration() time.Duration {
	if !n.Completed() {
		return 0
	}
	return time.Duration(n.EndTime-n.StartTime) * time.Millisecond
}

// Failed reports whether an error was recorded in the node's metadata.
func (n *Node) Failed() bool {
	_, ok := n.Metadata["error"]
	return ok
}

// Snapshot is the persisted form of an execution tree.
type Snapshot struct {
	ExecutionID   string `json:"executionId"`
	WorkflowName  string `json:"workflowName"`
	Version       int    `json:"version"`
	SchemaVersion int    `json:"schemaVersion"`
	StartedAt     int64  `json:"startedAt"`
	CompletedAt   int64  `json:"completedAt,omitempty"`
	UpdatedAt     int64  `json:"updatedAt"`
	Steps         int    `json:"steps"`
	Root          *Node  `json:"root"`
}

// Walk calls fn for every node in depth-first order, parents before
// children. Returning false from fn skips the node's children.
func (s *Snapshot) Walk(fn func(n *Node, depth int) bool) {
	if s.Root == nil {
		return
	}
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if !fn(n, depth) {
			return
		}
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	walk(s.Root, 0)
}

// Find returns the node with the given id, or nil.
func (s *Snapshot) Find(id string) *Node {
	var found *Node
	s.Walk(func(n *Node, _ int) bool {
		if n.ID == id {
			found = n
		}
		return found == nil
	})
	return found
}

// Status summarizes the execution as running, completed or failed.
func (s *Snapshot) Status() string {
	switch {
	case s.Root == nil || !s.Root.Completed():
		return "running"
	case s.Root.Failed():
		return "failed"
	default:
		return "completed"
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
