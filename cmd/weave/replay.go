package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/state"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newReplayCommand(a *app) *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "replay [messages.ndjson]",
		Short: "Rebuild published objects from a recorded message stream",
		Long: `Read newline-delimited workflow messages from a file, or stdin when no
file is given, apply every object message and print the resulting objects.`,
		Example: `  weave run greet.risor --messages | weave replay
  weave replay messages.ndjson --label story`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open message file: %w", err)
				}
				defer f.Close()
				r = f
			}

			logger := a.logger(cmd)
			tracker := state.NewTracker()
			counts := map[message.Type]int{}
			scanner := message.NewScanner(r)
			for scanner.Scan() {
				msg := scanner.Message()
				counts[msg.Type()]++
				if err := tracker.Send(msg); err != nil {
					logger.Warn("failed to apply object message", "error", err)
				}
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			objects := map[string]any{}
			for _, l := range tracker.Labels() {
				if label != "" && l != label {
					continue
				}
				objects[l], _ = tracker.Get(l)
			}
			if label != "" && len(objects) == 0 {
				return fmt.Errorf("no object labelled %q in stream", label)
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				data, err := json.MarshalIndent(objects, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			total := 0
			for _, n := range counts {
				total += n
			}
			color.New(color.FgBlue).Fprintf(out, "Replayed %d messages (%d object updates)\n", total, counts[message.TypeObject])
			for _, l := range tracker.Labels() {
				value, ok := objects[l]
				if !ok {
					continue
				}
				data, err := json.MarshalIndent(value, "", "  ")
				if err != nil {
					return err
				}
				color.New(color.FgCyan).Fprintf(out, "%s:\n", l)
				fmt.Fprintln(out, string(data))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&label, "label", "l", "", "only print the object with this label")
	return cmd
}
