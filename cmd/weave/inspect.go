package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newExecutionsCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"ls"},
		Short:   "List executions checkpointed to disk, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := a.fileWriter()
			if err != nil {
				return err
			}
			summaries, err := writer.ListExecutions(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(summaries) > limit {
				summaries = summaries[:limit]
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				data, err := json.MarshalIndent(summaries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			if len(summaries) == 0 {
				color.New(color.FgBlue).Fprintf(out, "No executions in %s\n", writer.Dir())
				return nil
			}
			for _, s := range summaries {
				fmt.Fprintf(out, "%s  %-20s  %s  %4d steps  %v  %s\n",
					s.ExecutionID,
					s.WorkflowName,
					statusColor(s.Status).Sprintf("%-9s", s.Status),
					s.Steps,
					s.Duration.Round(time.Millisecond),
					s.StartTime.Local().Format(time.DateTime),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most n executions")
	return cmd
}

func newTreeCommand(a *app) *cobra.Command {
	var (
		file       string
		showOutput bool
	)

	cmd := &cobra.Command{
		Use:   "tree [execution-id]",
		Short: "Print the component tree of an execution",
		Example: `  weave tree exec_01h455vb4pex5vsknk084sn02q
  weave tree --file ~/.weave/executions/exec_01h455vb4pex5vsknk084sn02q/checkpoint-3.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var snapshot *checkpoint.Snapshot
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read checkpoint file: %w", err)
				}
				snapshot = &checkpoint.Snapshot{}
				if err := json.Unmarshal(data, snapshot); err != nil {
					return fmt.Errorf("failed to unmarshal checkpoint: %w", err)
				}
			case len(args) == 1:
				writer, err := a.fileWriter()
				if err != nil {
					return err
				}
				snapshot, err = writer.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("an execution id or --file is required")
			}

			out := cmd.OutOrStdout()
			if a.jsonOutput {
				data, err := json.MarshalIndent(snapshot, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}
			printTree(out, snapshot, showOutput)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read the snapshot from a checkpoint file")
	cmd.Flags().BoolVarP(&showOutput, "output", "o", false, "show component outputs")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <execution-id>...",
		Short: "Delete the checkpoints of executions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := a.fileWriter()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := writer.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return nil
		},
	}
}

func printTree(w io.Writer, snapshot *checkpoint.Snapshot, showOutput bool) {
	summary := checkpoint.Summarize(snapshot)
	color.New(color.FgCyan, color.Bold).Fprintf(w, "%s ", snapshot.WorkflowName)
	fmt.Fprintf(w, "(%s) ", snapshot.ExecutionID)
	statusColor(summary.Status).Fprintf(w, "%s", summary.Status)
	fmt.Fprintf(w, " %d steps\n", snapshot.Steps)
	if snapshot.Root == nil {
		return
	}
	for i, child := range snapshot.Root.Children {
		printNode(w, child, "", i == len(snapshot.Root.Children)-1, showOutput)
	}
}

func printNode(w io.Writer, n *checkpoint.Node, prefix string, last, showOutput bool) {
	branch, indent := "├── ", "│   "
	if last {
		branch, indent = "└── ", "    "
	}
	fmt.Fprintf(w, "%s%s%s ", prefix, branch, n.ComponentName)
	switch {
	case n.Failed():
		color.New(color.FgRed).Fprint(w, "failed")
	case n.Completed():
		color.New(color.FgGreen).Fprint(w, n.Duration().String())
	default:
		color.New(color.FgYellow).Fprint(w, "running")
	}
	if label, ok := n.Metadata["label"].(string); ok {
		fmt.Fprintf(w, " [%s]", label)
	}
	fmt.Fprintln(w)

	if showOutput && n.Output != nil {
		if data, err := json.Marshal(n.Output); err == nil {
			text := string(data)
			if len(text) > 120 {
				text = text[:117] + "..."
			}
			fmt.Fprintf(w, "%s%s%s\n", prefix, indent, color.New(color.Faint).Sprint("→ "+text))
		}
	}
	for i, child := range n.Children {
		printNode(w, child, prefix+indent, i == len(n.Children)-1, showOutput)
	}
}

func statusColor(status string) *color.Color {
	switch strings.ToLower(status) {
	case "completed":
		return color.New(color.FgGreen)
	case "failed":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgYellow)
	}
}
