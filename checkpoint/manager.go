// Package checkpoint records the tree of component invocations made by an
// execution and persists snapshots of it.
package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/deepnoodle-ai/weave/patch"
	"go.jetify.com/typeid"
)

// NewNodeID returns a new unique node identifier.
func NewNodeID() string {
	id, err := typeid.WithPrefix("node")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Options configures a Manager.
type Options struct {
	ExecutionID  string
	WorkflowName string
	Writer       Writer
	Logger       *slog.Logger

	// WriteTimeout bounds each persist call. Defaults to 30 seconds.
	WriteTimeout time.Duration
}

// NodeSpec describes a node to add to the tree.
type NodeSpec struct {
	ComponentName string
	Props         any
	Metadata      map[string]any

	// SecretProps lists dot-separated paths into Props whose string values
	// are masked in every snapshot.
	SecretProps []string

	// SecretOutputs masks every string in the node's output.
	SecretOutputs bool
}

// NodeUpdate changes a node that is still running.
type NodeUpdate struct {
	Output   any
	Metadata map[string]any
}

type node struct {
	id            string
	componentName string
	parentID      string
	start         time.Time
	end           time.Time
	props         any
	output        any
	hasOutput     bool
	children      []*node
	metadata      map[string]any
	secretOutputs bool
}

// Manager owns the node table for one execution. The node that new nodes
// attach to is carried in the caller's context, so concurrent branches each
// build their own part of the tree.
type Manager struct {
	mutex        sync.Mutex
	executionID  string
	root         *node
	nodes        map[string]*node
	secrets      map[string]map[string]struct{}
	writer       Writer
	enabled      bool
	logger       *slog.Logger
	writeTimeout time.Duration
	version      int
	writing      bool
	pending      bool
	idle         chan struct{}
}

// NewManager creates a manager with a synthetic root node.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Writer == nil {
		opts.Writer = NewNullWriter()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	name := opts.WorkflowName
	if name == "" {
		name = "root"
	}
	_, isNull := opts.Writer.(*NullWriter)
	root := &node{
		id:            RootID,
		componentName: name,
		start:         time.Now(),
		props:         map[string]any{},
		metadata:      map[string]any{},
	}
	return &Manager{
		executionID:  opts.ExecutionID,
		root:         root,
		nodes:        map[string]*node{RootID: root},
		secrets:      map[string]map[string]struct{}{},
		writer:       opts.Writer,
		enabled:      !isNull,
		logger:       opts.Logger.With("execution_id", opts.ExecutionID),
		writeTimeout: opts.WriteTimeout,
		version:      1,
	}
}

type currentNodeKey struct {
	manager *Manager
}

// WithCurrentNode returns a context in which id is the node new nodes
// attach to.
func (m *Manager) WithCurrentNode(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, currentNodeKey{m}, id)
}

// CurrentNode returns the id of the node the context is positioned at, or
// the root id if none was set.
func (m *Manager) CurrentNode(ctx context.Context) string {
	if id, ok := ctx.Value(currentNodeKey{m}).(string); ok && id != "" {
		return id
	}
	return RootID
}

// AddNode attaches a new node under the context's current node and returns
// its id along with a context positioned at the new node.
func (m *Manager) AddNode(ctx context.Context, spec NodeSpec) (string, context.Context) {
	id := NewNodeID()
	props := m.normalize(spec.Props, "props")
	if props == nil {
		props = map[string]any{}
	}
	metadata := map[string]any{}
	if spec.Metadata != nil {
		if normalized, ok := m.normalize(spec.Metadata, "metadata").(map[string]any); ok {
			metadata = normalized
		}
	}
	parentID := m.CurrentNode(ctx)

	m.mutex.Lock()
	parent, ok := m.nodes[parentID]
	if !ok {
		m.logger.Warn("parent node not found, attaching to root",
			"node_id", id,
			"parent_id", parentID)
		parent = m.root
	}
	n := &node{
		id:            id,
		componentName: spec.ComponentName,
		parentID:      parent.id,
		start:         time.Now(),
		props:         props,
		metadata:      metadata,
		secretOutputs: spec.SecretOutputs,
	}
	parent.children = append(parent.children, n)
	m.nodes[id] = n
	for _, path := range spec.SecretProps {
		if value, ok := valueAtPath(props, path); ok {
			m.registerSecrets(id, value)
		}
	}
	m.mutex.Unlock()

	m.Write()
	return id, m.WithCurrentNode(ctx, id)
}

// CompleteNode records the end time and output of a node. Completing an
// unknown node logs a warning and does nothing.
func (m *Manager) CompleteNode(id string, output any) {
	normalized := m.normalize(output, "output")

	m.mutex.Lock()
	n, ok := m.nodes[id]
	if !ok {
		m.mutex.Unlock()
		m.logger.Warn("attempted to complete unknown node", "node_id", id)
		return
	}
	n.end = time.Now()
	n.output = normalized
	n.hasOutput = true
	if n.secretOutputs {
		m.registerSecrets(id, normalized)
	}
	m.mutex.Unlock()

	m.Write()
}

// AddMetadata merges metadata into a node. Unknown nodes are ignored.
func (m *Manager) AddMetadata(id string, metadata map[string]any) {
	normalized, _ := m.normalize(metadata, "metadata").(map[string]any)

	m.mutex.Lock()
	n, ok := m.nodes[id]
	if !ok {
		m.mutex.Unlock()
		return
	}
	maps.Copy(n.metadata, normalized)
	m.mutex.Unlock()

	m.Write()
}

// UpdateNode changes the output or metadata of a node before it completes,
// for example to show partial output of a streaming component.
func (m *Manager) UpdateNode(id string, update NodeUpdate) {
	var output any
	if update.Output != nil {
		output = m.normalize(update.Output, "output")
	}
	metadata, _ := m.normalize(update.Metadata, "metadata").(map[string]any)

	m.mutex.Lock()
	n, ok := m.nodes[id]
	if !ok {
		m.mutex.Unlock()
		m.logger.Warn("attempted to update unknown node", "node_id", id)
		return
	}
	if update.Output != nil {
		n.output = output
		n.hasOutput = true
	}
	maps.Copy(n.metadata, metadata)
	m.mutex.Unlock()

	m.Write()
}

// Snapshot returns a copy of the tree with secrets masked.
func (m *Manager) Snapshot() *Snapshot {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() *Snapshot {
	masker := newMasker(m.secrets)
	steps := 0
	var copyNode func(n *node) *Node
	copyNode = func(n *node) *Node {
		steps++
		out := &Node{
			ID:            n.id,
			ComponentName: n.componentName,
			ParentID:      n.parentID,
			StartTime:     toMillis(n.start),
			Props:         masker.mask(n.props),
			Children:      make([]*Node, 0, len(n.children)),
		}
		if !n.end.IsZero() {
			out.EndTime = max(toMillis(n.end), out.StartTime)
		}
		if n.hasOutput {
			out.Output = masker.mask(n.output)
		}
		if len(n.metadata) > 0 {
			out.Metadata, _ = masker.mask(n.metadata).(map[string]any)
		}
		for _, child := range n.children {
			out.Children = append(out.Children, copyNode(child))
		}
		return out
	}
	root := copyNode(m.root)
	return &Snapshot{
		ExecutionID:   m.executionID,
		WorkflowName:  m.root.componentName,
		Version:       m.version,
		SchemaVersion: SchemaVersion,
		StartedAt:     root.StartTime,
		CompletedAt:   root.EndTime,
		UpdatedAt:     time.Now().UnixMilli(),
		Steps:         steps,
		Root:          root,
	}
}

// Write schedules the tree to be persisted. At most one persist runs at a
// time; calls made while one is running are folded into a single follow-up
// write. Failures are logged.
func (m *Manager) Write() {
	if !m.enabled {
		return
	}
	m.mutex.Lock()
	if m.writing {
		m.pending = true
		m.mutex.Unlock()
		return
	}
	m.writing = true
	m.idle = make(chan struct{})
	m.mutex.Unlock()

	go m.writeLoop()
}

func (m *Manager) writeLoop() {
	for {
		snapshot := m.Snapshot()
		ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
		if err := m.writer.Write(ctx, snapshot); err != nil {
			m.logger.Error("failed to save checkpoint",
				"version", snapshot.Version,
				"error", err)
		}
		cancel()

		m.mutex.Lock()
		m.version++
		if !m.pending {
			m.writing = false
			close(m.idle)
			m.mutex.Unlock()
			return
		}
		m.pending = false
		m.mutex.Unlock()
	}
}

// Wait blocks until no write is in flight or pending, or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	m.mutex.Lock()
	if !m.writing {
		m.mutex.Unlock()
		return nil
	}
	idle := m.idle
	m.mutex.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecutionID returns the id of the execution this manager records.
func (m *Manager) ExecutionID() string {
	return m.executionID
}

func (m *Manager) normalize(value any, field string) any {
	normalized, err := patch.Normalize(value)
	if err != nil {
		m.logger.Warn("checkpoint value is not serializable",
			"field", field,
			"error", err)
		return fmt.Sprintf("[unserializable %T]", value)
	}
	return normalized
}
