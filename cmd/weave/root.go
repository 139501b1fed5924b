package main

import (
	"log/slog"

	"github.com/deepnoodle-ai/weave"
	"github.com/deepnoodle-ai/weave/checkpoint"
	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	verbose    bool
	jsonOutput bool

	config *weave.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "weave",
		Short: "Run scripts as workflows and inspect their executions",
		Long: `weave runs Risor scripts as workflows, replays recorded message
streams and inspects the checkpoint trees written by past executions.

Configuration is read from $WEAVE_CONFIG_DIR/config.yaml or the user
config directory, and WEAVE_* environment variables override it.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := weave.LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if a.verbose {
				cfg.LogLevel = "debug"
			}
			a.config = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand(a))
	rootCmd.AddCommand(newReplayCommand(a))
	rootCmd.AddCommand(newExecutionsCommand(a))
	rootCmd.AddCommand(newTreeCommand(a))
	rootCmd.AddCommand(newDeleteCommand(a))
	return rootCmd
}

func (a *app) logger(cmd *cobra.Command) *slog.Logger {
	return a.config.Logger(cmd.ErrOrStderr())
}

func (a *app) fileWriter() (*checkpoint.FileWriter, error) {
	return checkpoint.NewFileWriter(a.config.CheckpointDir)
}
