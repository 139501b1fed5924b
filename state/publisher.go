package state

import (
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
)

// Publisher converts successive values of labelled objects into object
// messages. The first publish of a label produces an initial message that
// reconstructs the value from an empty object; later publishes produce the
// patch from the previous value, or nothing when the value is unchanged.
type Publisher struct {
	mutex   sync.Mutex
	state   *Map
	options []patch.DiffOption
}

// NewPublisher creates a publisher with its own empty state map.
func NewPublisher(options ...patch.DiffOption) *Publisher {
	return &Publisher{state: NewMap(), options: options}
}

// Publish records value as the current state of label and returns the
// message describing the change. It returns nil when nothing changed.
// An error is returned only for values that cannot be represented as JSON.
func (p *Publisher) Publish(label string, value any) (*message.Object, error) {
	normalized, err := patch.Normalize(value)
	if err != nil {
		return nil, fmt.Errorf("publish %q: %w", label, err)
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	previous, exists := p.state.lookup(label)
	if !exists {
		patches, err := patch.Diff(map[string]any{}, normalized, p.options...)
		if err != nil {
			return nil, fmt.Errorf("publish %q: %w", label, err)
		}
		p.state.set(label, normalized)
		return &message.Object{Label: label, Patches: patches, IsInitial: true}, nil
	}

	patches, err := patch.Diff(previous, normalized, p.options...)
	if err != nil {
		return nil, fmt.Errorf("publish %q: %w", label, err)
	}
	p.state.set(label, normalized)
	if len(patches) == 0 {
		return nil, nil
	}
	return &message.Object{Label: label, Patches: patches}, nil
}

// Resync returns an initial message rebuilding the stored value of label
// from an empty object, for consumers that lost track of it. It returns nil
// if label has never been published.
func (p *Publisher) Resync(label string) (*message.Object, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	current, exists := p.state.lookup(label)
	if !exists {
		return nil, nil
	}
	patches, err := patch.Diff(map[string]any{}, current, p.options...)
	if err != nil {
		return nil, fmt.Errorf("resync %q: %w", label, err)
	}
	return &message.Object{Label: label, Patches: patches, IsInitial: true}, nil
}

// Clear forgets label so that its next publish is initial again.
func (p *Publisher) Clear(label string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.state.Delete(label)
}

// Reset forgets every label.
func (p *Publisher) Reset() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.state.Reset()
}

// Snapshot returns a copy of every label's current value.
func (p *Publisher) Snapshot() map[string]any {
	return p.state.Snapshot()
}

// State returns read-only access to the published values.
func (p *Publisher) State() Reader {
	return p.state
}
