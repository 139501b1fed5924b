package message

import (
	"bufio"
	"bytes"
	"io"
)

const maxLineSize = 16 * 1024 * 1024

// Scanner reads newline-delimited JSON messages from a stream.
type Scanner struct {
	scanner *bufio.Scanner
	msg     Message
	err     error
}

// NewScanner returns a scanner reading from r. Blank lines are skipped.
func NewScanner(r io.Reader) *Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Scanner{scanner: s}
}

// Scan advances to the next message. It returns false at the end of the
// stream or on the first error.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := Decode(line)
		if err != nil {
			s.err = err
			return false
		}
		s.msg = msg
		return true
	}
	s.err = s.scanner.Err()
	return false
}

// Message returns the most recently scanned message.
func (s *Scanner) Message() Message {
	return s.msg
}

// Err returns the first error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// ReadAll decodes every message in a newline-delimited JSON stream.
func ReadAll(r io.Reader) ([]Message, error) {
	var messages []Message
	s := NewScanner(r)
	for s.Scan() {
		messages = append(messages, s.Message())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}
