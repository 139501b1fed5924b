package weave

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/patch"
)

// SendMessage sends msg to the current execution's sinks.
func SendMessage(ctx context.Context, msg message.Message) error {
	exec, err := CurrentExecution(ctx)
	if err != nil {
		return err
	}
	exec.Send(msg)
	return nil
}

// PublishData sends a data message.
func PublishData(ctx context.Context, data any) error {
	normalized, err := patch.Normalize(data)
	if err != nil {
		return fmt.Errorf("failed to publish data: %w", err)
	}
	return SendMessage(ctx, &message.Data{Data: normalized})
}

// PublishEvent sends an event message. Events sharing a label form a
// series.
func PublishEvent(ctx context.Context, label string, data any) error {
	normalized, err := patch.Normalize(data)
	if err != nil {
		return fmt.Errorf("failed to publish event %q: %w", label, err)
	}
	return SendMessage(ctx, &message.Event{Label: label, Data: normalized})
}

// PublishObject publishes the current value of a labelled object. The first
// publish of a label carries the whole value; later ones carry only the
// patch from the previous value, and nothing is sent when the value did
// not change.
func PublishObject(ctx context.Context, label string, value any) error {
	exec, err := CurrentExecution(ctx)
	if err != nil {
		return err
	}
	return exec.publish(label, value)
}

// ClearObject forgets a label's state so its next publish is initial.
func ClearObject(ctx context.Context, label string) error {
	exec, err := CurrentExecution(ctx)
	if err != nil {
		return err
	}
	exec.publisher.Clear(label)
	return nil
}

// ResyncObject re-sends a label's full value as an initial message, for
// consumers that lost track of it. Unknown labels send nothing.
func ResyncObject(ctx context.Context, label string) error {
	exec, err := CurrentExecution(ctx)
	if err != nil {
		return err
	}
	return exec.resync(label)
}
