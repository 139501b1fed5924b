package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/components"
	"github.com/deepnoodle-ai/weave/message"
	"github.com/deepnoodle-ai/weave/script"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRunCommand(a *app) *cobra.Command {
	var (
		inputs   []string
		timeout  time.Duration
		messages bool
		safe     bool
		name     string
	)

	cmd := &cobra.Command{
		Use:   "run <script.risor>",
		Short: "Run a Risor script as a workflow",
		Long: `Run a Risor script as a single-component workflow. Props are available
to the script as the "props" global and the script's final value is the
workflow output.`,
		Example: `  # Run a script with props
  weave run greet.risor -p name=ada -p count=3

  # Stream workflow messages as NDJSON
  weave run greet.risor --messages > messages.ndjson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}
			props, err := parseInputs(inputs)
			if err != nil {
				return err
			}
			if name == "" {
				name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			logger := a.logger(cmd)
			writer, err := a.config.NewCheckpointWriter(logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			if safe {
				ctx = weave.WithCompiler(ctx, script.NewRisorCompiler(script.SafeRisorGlobals()))
			}

			opts := weave.RunOptions{
				ExecutionID:      weave.NewExecutionID(),
				CheckpointWriter: writer,
				Logger:           logger,
				Metadata:         map[string]any{"script": args[0]},
			}
			if messages {
				opts.Sinks = append(opts.Sinks, message.NewWriterSink(cmd.OutOrStdout()))
			}

			step := components.NewScript(name+".script", string(code))
			wf := weave.NewWorkflow(name, func(ctx context.Context, props map[string]any) (any, error) {
				return step.Run(ctx, props)
			})

			start := time.Now()
			output, runErr := wf.Run(ctx, props, opts)
			if messages {
				return runErr
			}
			return printRunResult(cmd, opts.ExecutionID, output, runErr, time.Since(start), a.jsonOutput)
		},
	}

	cmd.Flags().StringArrayVarP(&inputs, "prop", "p", nil, "prop in key=value format, values are parsed as JSON when possible")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "execution timeout, e.g. 30s")
	cmd.Flags().BoolVar(&messages, "messages", false, "write workflow messages to stdout as NDJSON")
	cmd.Flags().BoolVar(&safe, "safe", false, "restrict scripts to builtins without side effects")
	cmd.Flags().StringVar(&name, "name", "", "workflow name, defaults to the script file name")
	return cmd
}

// parseInputs turns key=value pairs into props. Values are parsed as JSON
// and fall back to plain strings.
func parseInputs(inputs []string) (map[string]any, error) {
	props := make(map[string]any, len(inputs))
	for _, input := range inputs {
		key, value, ok := strings.Cut(input, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid prop %q, use key=value", input)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		props[key] = parsed
	}
	return props, nil
}

func printRunResult(cmd *cobra.Command, executionID string, output any, runErr error, duration time.Duration, jsonOutput bool) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		result := map[string]any{
			"executionId": executionID,
			"output":      output,
			"durationMs":  duration.Milliseconds(),
		}
		if runErr != nil {
			result["error"] = runErr.Error()
		}
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return runErr
	}

	fmt.Fprintf(out, "Execution %s finished in %v\n", executionID, duration.Round(time.Millisecond))
	if runErr != nil {
		return runErr
	}
	color.New(color.FgGreen).Fprintln(out, "Execution successful!")
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "Output: %v\n", output)
		return nil
	}
	color.New(color.FgMagenta).Fprintln(out, "Output:")
	fmt.Fprintln(out, string(data))
	return nil
}
