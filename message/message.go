// Package message defines the workflow message stream emitted by running
// executions and the bus that delivers it to listeners.
package message

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/weave/patch"
)

// Type discriminates workflow messages on the wire.
type Type string

const (
	TypeStart          Type = "start"
	TypeComponentStart Type = "component-start"
	TypeComponentEnd   Type = "component-end"
	TypeData           Type = "data"
	TypeEvent          Type = "event"
	TypeObject         Type = "object"
	TypeError          Type = "error"
	TypeEnd            Type = "end"
)

// ErrUnknownType is returned when decoding a message with an unrecognized
// type discriminator.
var ErrUnknownType = errors.New("unknown message type")

// Message is one entry of a workflow message stream.
type Message interface {
	Type() Type
}

// Start opens the stream for one workflow execution.
type Start struct {
	WorkflowName        string `json:"workflowName"`
	WorkflowExecutionID string `json:"workflowExecutionId,omitempty"`
}

// ComponentStart is sent when a component begins running.
type ComponentStart struct {
	ComponentName string `json:"componentName"`
	ComponentID   string `json:"componentId"`
	Label         string `json:"label,omitempty"`
}

// ComponentEnd is sent when a component finishes, successfully or not.
type ComponentEnd struct {
	ComponentName string `json:"componentName"`
	ComponentID   string `json:"componentId"`
	Label         string `json:"label,omitempty"`
}

// Data carries an arbitrary JSON value.
type Data struct {
	Data any `json:"data"`
}

// Event carries a labelled JSON value.
type Event struct {
	Label string `json:"label"`
	Data  any    `json:"data"`
}

// Object carries patches that update the consumer's copy of a labelled
// object. The first object message for a label has IsInitial set and its
// patches apply to an empty object.
type Object struct {
	Label     string      `json:"label"`
	Patches   patch.Patch `json:"patches"`
	IsInitial bool        `json:"isInitial,omitempty"`
}

// Error reports a workflow failure.
type Error struct {
	Error string `json:"error"`
}

// End closes the stream. It is always the last message of an execution.
type End struct{}

func (Start) Type() Type          { return TypeStart }
func (ComponentStart) Type() Type { return TypeComponentStart }
func (ComponentEnd) Type() Type   { return TypeComponentEnd }
func (Data) Type() Type           { return TypeData }
func (Event) Type() Type          { return TypeEvent }
func (Object) Type() Type         { return TypeObject }
func (Error) Type() Type          { return TypeError }
func (End) Type() Type            { return TypeEnd }

func (m Start) MarshalJSON() ([]byte, error) {
	type alias Start
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeStart, alias(m)})
}

func (m ComponentStart) MarshalJSON() ([]byte, error) {
	type alias ComponentStart
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeComponentStart, alias(m)})
}

func (m ComponentEnd) MarshalJSON() ([]byte, error) {
	type alias ComponentEnd
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeComponentEnd, alias(m)})
}

func (m Data) MarshalJSON() ([]byte, error) {
	type alias Data
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeData, alias(m)})
}

func (m Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeEvent, alias(m)})
}

func (m Object) MarshalJSON() ([]byte, error) {
	type alias Object
	if m.Patches == nil {
		m.Patches = patch.Patch{}
	}
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeObject, alias(m)})
}

func (m Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{TypeError, alias(m)})
}

func (m End) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Type `json:"type"`
	}{TypeEnd})
}

// Decode parses a single JSON-encoded message. The concrete type of the
// returned message is a pointer to one of the message structs.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	var msg Message
	switch head.Type {
	case TypeStart:
		msg = &Start{}
	case TypeComponentStart:
		msg = &ComponentStart{}
	case TypeComponentEnd:
		msg = &ComponentEnd{}
	case TypeData:
		msg = &Data{}
	case TypeEvent:
		msg = &Event{}
	case TypeObject:
		msg = &Object{}
	case TypeError:
		msg = &Error{}
	case TypeEnd:
		return &End{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode %s message: %w", head.Type, err)
	}
	return msg, nil
}
