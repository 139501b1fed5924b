package state

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
)

var (
	// ErrCorrupted is returned for incremental updates to a label whose
	// state was discarded after a failed apply.
	ErrCorrupted = errors.New("object state is corrupted")

	// ErrNoInitialState is returned for incremental updates to a label that
	// has not received an initial message.
	ErrNoInitialState = errors.New("object has no initial state")
)

// Tracker rebuilds labelled objects from a stream of object messages. It is
// the consumer-side counterpart of Publisher and can be registered as a
// message sink.
type Tracker struct {
	mutex     sync.Mutex
	objects   map[string]any
	corrupted map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{
		objects:   make(map[string]any),
		corrupted: make(map[string]bool),
	}
}

// Send applies object messages and ignores every other message type.
func (t *Tracker) Send(msg message.Message) error {
	switch m := msg.(type) {
	case *message.Object:
		return t.Apply(m)
	case message.Object:
		return t.Apply(&m)
	}
	return nil
}

// Apply updates the label named by msg. An initial message starts from an
// empty object and clears any corruption. If the patches cannot be applied
// the label is discarded and marked corrupted until the next initial
// message arrives.
func (t *Tracker) Apply(msg *message.Object) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var base any
	if msg.IsInitial {
		base = map[string]any{}
		delete(t.corrupted, msg.Label)
	} else {
		if t.corrupted[msg.Label] {
			return fmt.Errorf("object %q: %w", msg.Label, ErrCorrupted)
		}
		current, exists := t.objects[msg.Label]
		if !exists {
			t.corrupted[msg.Label] = true
			return fmt.Errorf("object %q: %w", msg.Label, ErrNoInitialState)
		}
		base = current
	}

	updated, err := patch.Apply(base, msg.Patches)
	if err != nil {
		delete(t.objects, msg.Label)
		t.corrupted[msg.Label] = true
		return fmt.Errorf("object %q: %w", msg.Label, err)
	}
	t.objects[msg.Label] = updated
	return nil
}

// Get returns the reconstructed value for label.
func (t *Tracker) Get(label string) (any, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	value, exists := t.objects[label]
	if !exists {
		return nil, false
	}
	copied, _ := patch.Normalize(value)
	return copied, true
}

// Corrupted reports whether label is waiting for a fresh initial message.
func (t *Tracker) Corrupted(label string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.corrupted[label]
}

// Labels returns the labels with a reconstructed value, sorted.
func (t *Tracker) Labels() []string {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	labels := make([]string, 0, len(t.objects))
	for label := range t.objects {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
