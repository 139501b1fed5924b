package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// WriterSink writes each message as one line of JSON.
type WriterSink struct {
	mutex sync.Mutex
	w     io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err = s.w.Write(append(data, '\n'))
	return err
}

// FileSink appends messages to a per-execution file. The file is formatted
// as newline-delimited JSON.
type FileSink struct {
	mutex       sync.Mutex
	directory   string
	executionID string
}

func NewFileSink(directory, executionID string) *FileSink {
	return &FileSink{directory: directory, executionID: executionID}
}

// Path returns the location of the execution's message log.
func (s *FileSink) Path() string {
	return filepath.Join(s.directory, fmt.Sprintf("%s.jsonl", s.executionID))
}

func (s *FileSink) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	filePath := s.Path()
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return f.Sync()
}

// History reads back every message logged for the execution.
func (s *FileSink) History(ctx context.Context) ([]Message, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	f, err := os.Open(s.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadAll(f)
}

// SSESink streams messages as Server-Sent Events, one data frame per
// message, flushing after each.
type SSESink struct {
	mutex   sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
}

// NewSSESink prepares w for an event stream. The request context, when
// given, makes Send fail once the client has gone away.
func NewSSESink(ctx context.Context, w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSESink{w: w, flusher: flusher, ctx: ctx}, nil
}

func (s *SSESink) Send(msg Message) error {
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("event stream closed: %w", err)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Collector keeps every message in memory.
type Collector struct {
	mutex    sync.Mutex
	messages []Message
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Send(msg Message) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the collected messages.
func (c *Collector) Messages() []Message {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Types returns the type of each collected message, in order.
func (c *Collector) Types() []Type {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	types := make([]Type, len(c.messages))
	for i, msg := range c.messages {
		types[i] = msg.Type()
	}
	return types
}

// Objects returns the collected object messages for label.
func (c *Collector) Objects(label string) []*Object {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	var out []*Object
	for _, msg := range c.messages {
		switch m := msg.(type) {
		case *Object:
			if m.Label == label {
				out = append(out, m)
			}
		case Object:
			if m.Label == label {
				out = append(out, &m)
			}
		}
	}
	return out
}

// Reset discards all collected messages.
func (c *Collector) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.messages = nil
}
