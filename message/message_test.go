package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/deepnoodle-ai/weave/patch"
	"github.com/stretchr/testify/require"
)

func TestWireShapes(t *testing.T) {
	tests := []struct {
		msg  Message
		want string
	}{
		{&Start{WorkflowName: "Story"}, `{"type":"start","workflowName":"Story"}`},
		{&Start{WorkflowName: "Story", WorkflowExecutionID: "exec_1"}, `{"type":"start","workflowName":"Story","workflowExecutionId":"exec_1"}`},
		{&ComponentStart{ComponentName: "Draft", ComponentID: "node_1"}, `{"type":"component-start","componentName":"Draft","componentId":"node_1"}`},
		{&ComponentEnd{ComponentName: "Draft", ComponentID: "node_1", Label: "d"}, `{"type":"component-end","componentName":"Draft","componentId":"node_1","label":"d"}`},
		{&Data{Data: []any{1, "a"}}, `{"type":"data","data":[1,"a"]}`},
		{&Data{}, `{"type":"data","data":null}`},
		{&Event{Label: "progress", Data: map[string]any{"pct": 50}}, `{"type":"event","label":"progress","data":{"pct":50}}`},
		{&Object{Label: "draft", Patches: patch.Patch{patch.Replace("", "H")}, IsInitial: true}, `{"type":"object","label":"draft","patches":[{"op":"replace","path":"","value":"H"}],"isInitial":true}`},
		{&Object{Label: "draft", Patches: patch.Patch{patch.StringAppend("", "e")}}, `{"type":"object","label":"draft","patches":[{"op":"string-append","path":"","value":"e"}]}`},
		{&Object{Label: "empty"}, `{"type":"object","label":"empty","patches":[]}`},
		{&Error{Error: "boom"}, `{"type":"error","error":"boom"}`},
		{&End{}, `{"type":"end"}`},
		{End{}, `{"type":"end"}`},
	}
	for _, tt := range tests {
		t.Run(string(tt.msg.Type()), func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(data))

			decoded, err := Decode(data)
			require.NoError(t, err)
			require.Equal(t, tt.msg.Type(), decoded.Type())

			again, err := json.Marshal(decoded)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(again))
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":"nope"}`))
	require.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)

	_, err = Decode([]byte(`{"type":"object","label":"x","patches":[{"op":"add"}]}`))
	require.Error(t, err)
}

func TestReadAll(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)
	require.NoError(t, sink.Send(&Start{WorkflowName: "wf"}))
	require.NoError(t, sink.Send(&Data{Data: "x"}))
	require.NoError(t, sink.Send(&End{}))

	messages, err := ReadAll(strings.NewReader(buf.String() + "\n\n"))
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, &Start{WorkflowName: "wf"}, messages[0])
	require.Equal(t, &Data{Data: "x"}, messages[1])
	require.Equal(t, &End{}, messages[2])
}

func TestBusOrderingAndErrors(t *testing.T) {
	collector := NewCollector()
	var order []string
	failing := SinkFunc(func(msg Message) error {
		order = append(order, "failing")
		return errors.New("transport down")
	})
	tail := SinkFunc(func(msg Message) error {
		order = append(order, "tail")
		return nil
	})

	bus := NewBus(nil, collector, failing)
	bus.AddSink(tail)

	bus.Send(&Start{WorkflowName: "wf"})
	bus.Send(nil)
	bus.Send(&Data{Data: 1})
	bus.Send(&End{})

	require.Equal(t, []Type{TypeStart, TypeData, TypeEnd}, collector.Types())
	require.Equal(t, []string{"failing", "tail", "failing", "tail", "failing", "tail"}, order)
}

func TestBusConcurrentSendersKeepPerSenderOrder(t *testing.T) {
	collector := NewCollector()
	bus := NewBus(nil, collector)

	var wg sync.WaitGroup
	for sender := 0; sender < 8; sender++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				bus.Send(&Event{Label: string(rune('a' + sender)), Data: float64(i)})
			}
		}(sender)
	}
	wg.Wait()

	next := map[string]float64{}
	for _, msg := range collector.Messages() {
		event := msg.(*Event)
		require.Equal(t, next[event.Label], event.Data)
		next[event.Label]++
	}
	require.Len(t, next, 8)
}

func TestFileSink(t *testing.T) {
	sink := NewFileSink(t.TempDir(), "exec_123")
	require.NoError(t, sink.Send(&Start{WorkflowName: "wf", WorkflowExecutionID: "exec_123"}))
	require.NoError(t, sink.Send(&Object{Label: "o", Patches: patch.Patch{patch.Add("/a", 1.0)}, IsInitial: true}))
	require.NoError(t, sink.Send(&End{}))

	history, err := sink.History(context.Background())
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, &Object{Label: "o", Patches: patch.Patch{patch.Add("/a", 1.0)}, IsInitial: true}, history[1])
}

func TestSSESink(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(context.Background(), rec)
	require.NoError(t, err)

	require.NoError(t, sink.Send(&Data{Data: "hi"}))
	require.NoError(t, sink.Send(&End{}))

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Equal(t, "data: {\"type\":\"data\",\"data\":\"hi\"}\n\ndata: {\"type\":\"end\"}\n\n", rec.Body.String())
	require.True(t, rec.Flushed)

	ctx, cancel := context.WithCancel(context.Background())
	closed, err := NewSSESink(ctx, httptest.NewRecorder())
	require.NoError(t, err)
	cancel()
	require.Error(t, closed.Send(&End{}))
}

func TestCollectorObjects(t *testing.T) {
	c := NewCollector()
	require.NoError(t, c.Send(&Object{Label: "a"}))
	require.NoError(t, c.Send(Object{Label: "b"}))
	require.NoError(t, c.Send(&Object{Label: "a", IsInitial: true}))
	require.Len(t, c.Objects("a"), 2)
	require.Len(t, c.Objects("b"), 1)
	c.Reset()
	require.Empty(t, c.Messages())
}
