// Package state tracks the last published value of each labelled object and
// turns successive values into patch messages.
package state

import (
	"sort"
	"sync"

	"github.com/deepnoodle-ai/weave/patch"
)

// Reader provides read-only access to object state
type Reader interface {
	// Get returns a copy of the value stored for label
	Get(label string) (any, bool)

	// Labels returns the labels that currently hold a value
	Labels() []string

	// Snapshot returns a copy of all values keyed by label
	Snapshot() map[string]any
}

// Map holds the last known value for each label. Values are stored in the
// normalized JSON value model.
type Map struct {
	values map[string]any
	mutex  sync.RWMutex
}

// NewMap creates an empty state map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// Get returns a copy of the value stored for label.
func (m *Map) Get(label string) (any, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, exists := m.values[label]
	if !exists {
		return nil, false
	}
	copied, _ := patch.Normalize(value)
	return copied, true
}

// Set stores value for label.
func (m *Map) Set(label string, value any) error {
	normalized, err := patch.Normalize(value)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.values[label] = normalized
	return nil
}

// Delete removes the value stored for label.
func (m *Map) Delete(label string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.values, label)
}

// Reset removes every value.
func (m *Map) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.values = make(map[string]any)
}

// Labels returns the stored labels in sorted order.
func (m *Map) Labels() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	labels := make([]string, 0, len(m.values))
	for label := range m.values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Snapshot returns a deep copy of all stored values.
func (m *Map) Snapshot() map[string]any {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snapshot := make(map[string]any, len(m.values))
	for label, value := range m.values {
		snapshot[label], _ = patch.Normalize(value)
	}
	return snapshot
}

// Load replaces the map contents, e.g. with values restored from a store.
func (m *Map) Load(values map[string]any) error {
	loaded := make(map[string]any, len(values))
	for label, value := range values {
		normalized, err := patch.Normalize(value)
		if err != nil {
			return err
		}
		loaded[label] = normalized
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.values = loaded
	return nil
}

// set stores an already normalized value without copying it.
func (m *Map) set(label string, value any) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.values[label] = value
}

func (m *Map) lookup(label string) (any, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	value, exists := m.values[label]
	return value, exists
}
