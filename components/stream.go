package components

import (
	"context"
	"iter"
	"strings"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/checkpoint"
)

// TextStreamFunc produces text chunks, for example tokens from a model.
// A non-nil error ends the stream.
type TextStreamFunc[P any] func(ctx context.Context, props P) iter.Seq2[string, error]

// NewTextStream returns a component that accumulates the chunks produced
// by fn. After every chunk the accumulated text is published as the object
// label, so consumers receive it as string appends, and recorded as the
// partial output of the component's checkpoint node. An empty label skips
// publishing.
func NewTextStream[P any](name, label string, fn TextStreamFunc[P], opts ...weave.ComponentOption) *weave.Component[P, string] {
	return weave.NewComponent(name, func(ctx context.Context, props P) (string, error) {
		exec, err := weave.CurrentExecution(ctx)
		if err != nil {
			return "", err
		}
		manager := exec.Checkpoints()
		nodeID := manager.CurrentNode(ctx)

		var sb strings.Builder
		for chunk, err := range fn(ctx, props) {
			if err != nil {
				return "", err
			}
			if chunk == "" {
				continue
			}
			sb.WriteString(chunk)
			text := sb.String()
			if label != "" {
				if err := weave.PublishObject(ctx, label, text); err != nil {
					return "", err
				}
			}
			manager.UpdateNode(nodeID, checkpoint.NodeUpdate{Output: text})
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return sb.String(), nil
	}, opts...)
}

// Chunks returns a stream over fixed chunks, stopping early if ctx is
// canceled.
func Chunks(chunks ...string) TextStreamFunc[struct{}] {
	return func(ctx context.Context, _ struct{}) iter.Seq2[string, error] {
		return func(yield func(string, error) bool) {
			for _, chunk := range chunks {
				if err := ctx.Err(); err != nil {
					yield("", err)
					return
				}
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}
