package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plannerctl",
		Short: "Operator tools for the planning companion",
		Long: `plannerctl drives the companion's domain logic from a terminal.

It can watch a planning's refined tasks being generated against the live
backend, or replay recorded conferencing SDK events through a transcription
session to inspect the resulting blocks.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newReplayCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
