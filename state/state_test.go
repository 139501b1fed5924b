package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
	"github.com/stretchr/testify/require"
)

func TestPublishFirstIsInitial(t *testing.T) {
	p := NewPublisher()

	msg, err := p.Publish("empty", map[string]any{})
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.True(t, msg.IsInitial)
	require.Empty(t, msg.Patches)

	msg, err = p.Publish("zero", 0)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.True(t, msg.IsInitial)
}

func TestPublishSuppressesNoOp(t *testing.T) {
	p := NewPublisher()
	value := map[string]any{"step": 1, "items": []any{"a"}}

	first, err := p.Publish("progress", value)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := p.Publish("progress", map[string]any{"step": 1, "items": []any{"a"}})
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestPublishStoresDetachedValue(t *testing.T) {
	p := NewPublisher()
	value := map[string]any{"text": "Hello"}
	_, err := p.Publish("story", value)
	require.NoError(t, err)

	value["text"] = "changed behind the publisher's back"
	stored, ok := p.State().Get("story")
	require.True(t, ok)
	require.Equal(t, map[string]any{"text": "Hello"}, stored)

	msg, err := p.Publish("story", map[string]any{"text": "Hello World"})
	require.NoError(t, err)
	require.Equal(t, patch.Patch{patch.StringAppend("/text", " World")}, msg.Patches)

	stored, _ = p.State().Get("story")
	require.Equal(t, map[string]any{"text": "Hello World"}, stored)
}

func TestPublishStepReplace(t *testing.T) {
	p := NewPublisher()
	_, err := p.Publish("progress", map[string]any{"step": 1})
	require.NoError(t, err)

	msg, err := p.Publish("progress", map[string]any{"step": 2})
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.False(t, msg.IsInitial)
	require.Equal(t, patch.Patch{patch.Replace("/step", float64(2))}, msg.Patches)
}

func TestPublishStreamingAccumulation(t *testing.T) {
	p := NewPublisher()
	tracker := NewTracker()

	var messages []*message.Object
	for _, value := range []string{"H", "He", "Hello"} {
		msg, err := p.Publish("draft", value)
		require.NoError(t, err)
		require.NotNil(t, msg)
		messages = append(messages, msg)
		require.NoError(t, tracker.Apply(msg))
	}

	require.True(t, messages[0].IsInitial)
	require.Equal(t, patch.Patch{patch.StringAppend("", "e")}, messages[1].Patches)
	require.Equal(t, patch.Patch{patch.StringAppend("", "llo")}, messages[2].Patches)

	got, ok := tracker.Get("draft")
	require.True(t, ok)
	require.Equal(t, "Hello", got)
}

func TestPublishNestedText(t *testing.T) {
	p := NewPublisher()
	_, err := p.Publish("story", map[string]any{"title": "Tale", "body": "Once"})
	require.NoError(t, err)

	msg, err := p.Publish("story", map[string]any{"title": "Tale", "body": "Once upon"})
	require.NoError(t, err)
	require.Equal(t, patch.Patch{patch.StringAppend("/body", " upon")}, msg.Patches)
}

func TestPublishNotSerializable(t *testing.T) {
	p := NewPublisher()
	_, err := p.Publish("bad", map[string]any{"fn": func() {}})
	require.Error(t, err)
	require.Empty(t, p.State().Labels())
}

func TestClearResetAndResync(t *testing.T) {
	p := NewPublisher()
	_, err := p.Publish("a", map[string]any{"n": 1})
	require.NoError(t, err)
	_, err = p.Publish("b", "text")
	require.NoError(t, err)

	resync, err := p.Resync("a")
	require.NoError(t, err)
	require.True(t, resync.IsInitial)
	tracker := NewTracker()
	require.NoError(t, tracker.Apply(resync))
	got, _ := tracker.Get("a")
	require.Equal(t, map[string]any{"n": float64(1)}, got)

	missing, err := p.Resync("nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	p.Clear("a")
	msg, err := p.Publish("a", map[string]any{"n": 1})
	require.NoError(t, err)
	require.True(t, msg.IsInitial)

	p.Reset()
	require.Empty(t, p.Snapshot())
	msg, err = p.Publish("b", "text")
	require.NoError(t, err)
	require.True(t, msg.IsInitial)
}

func TestPublisherConcurrentLabels(t *testing.T) {
	p := NewPublisher()
	tracker := NewTracker()
	bus := message.NewBus(nil, tracker)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			label := fmt.Sprintf("label-%d", i)
			text := ""
			for j := 0; j < 20; j++ {
				text += fmt.Sprintf("%d,", j)
				msg, err := p.Publish(label, map[string]any{"text": text, "count": j})
				require.NoError(t, err)
				if msg != nil {
					bus.Send(msg)
				}
			}
		}(i)
	}
	wg.Wait()

	snapshot := p.Snapshot()
	require.Len(t, snapshot, 10)
	for label, want := range snapshot {
		got, ok := tracker.Get(label)
		require.True(t, ok)
		require.Equal(t, want, got)
		require.False(t, tracker.Corrupted(label))
	}
}

func TestTrackerCorruption(t *testing.T) {
	tracker := NewTracker()

	err := tracker.Apply(&message.Object{Label: "x", Patches: patch.Patch{patch.Add("/a", 1.0)}})
	require.ErrorIs(t, err, ErrNoInitialState)
	require.True(t, tracker.Corrupted("x"))

	require.NoError(t, tracker.Apply(&message.Object{Label: "x", Patches: patch.Patch{patch.Add("/n", 5.0)}, IsInitial: true}))
	require.False(t, tracker.Corrupted("x"))

	err = tracker.Apply(&message.Object{Label: "x", Patches: patch.Patch{patch.StringAppend("/n", "!")}})
	require.ErrorIs(t, err, patch.ErrNotString)
	require.True(t, tracker.Corrupted("x"))
	_, ok := tracker.Get("x")
	require.False(t, ok)

	err = tracker.Apply(&message.Object{Label: "x", Patches: patch.Patch{patch.Replace("/n", 6.0)}})
	require.ErrorIs(t, err, ErrCorrupted)

	require.NoError(t, tracker.Send(&message.Object{Label: "x", Patches: patch.Patch{patch.Add("/n", 7.0)}, IsInitial: true}))
	got, ok := tracker.Get("x")
	require.True(t, ok)
	require.Equal(t, map[string]any{"n": 7.0}, got)
	require.NoError(t, tracker.Send(&message.End{}))
	require.Equal(t, []string{"x"}, tracker.Labels())
}

func TestMap(t *testing.T) {
	m := NewMap()
	require.NoError(t, m.Set("b", map[string]any{"k": []any{1}}))
	require.NoError(t, m.Set("a", "v"))
	require.Equal(t, []string{"a", "b"}, m.Labels())

	value, ok := m.Get("b")
	require.True(t, ok)
	value.(map[string]any)["k"] = "mutated"
	again, _ := m.Get("b")
	require.Equal(t, map[string]any{"k": []any{float64(1)}}, again)

	m.Delete("a")
	require.Equal(t, []string{"b"}, m.Labels())

	require.NoError(t, m.Load(map[string]any{"c": true}))
	require.Equal(t, map[string]any{"c": true}, m.Snapshot())

	m.Reset()
	require.Empty(t, m.Labels())
}
