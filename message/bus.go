package message

import (
	"log/slog"
	"sync"
)

// Sink receives workflow messages. Implementations decide how messages are
// transported; the bus does not retry failed sends.
type Sink interface {
	Send(msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(msg Message) error

func (f SinkFunc) Send(msg Message) error {
	return f(msg)
}

// Discard is a sink that drops every message.
var Discard Sink = SinkFunc(func(Message) error { return nil })

// Bus delivers messages to its sinks in the order Send is called. Delivery
// is synchronous: Send returns after every sink has been invoked.
type Bus struct {
	mutex  sync.Mutex
	sinks  []Sink
	logger *slog.Logger
}

// NewBus creates a bus delivering to the given sinks in registration order.
func NewBus(logger *slog.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{sinks: sinks, logger: logger}
}

// AddSink registers another sink. It receives only messages sent after it
// was added.
func (b *Bus) AddSink(sink Sink) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Send delivers msg to every sink. Sink errors are logged and otherwise
// ignored.
func (b *Bus) Send(msg Message) {
	if msg == nil {
		return
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for _, sink := range b.sinks {
		if err := sink.Send(msg); err != nil {
			b.logger.Warn("failed to deliver workflow message",
				"type", msg.Type(),
				"error", err)
		}
	}
}
