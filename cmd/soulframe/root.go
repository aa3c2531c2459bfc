package main

import (
	"github.com/spf13/cobra"

	"github.com/soulframe/soulframe/internal/log"
)

// rootOptions holds global flags shared by all subcommands.
type rootOptions struct {
	LogLevel string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "soulframe",
		Short: "Soulframe - a portrait that notices you",
		Long: "Coordination core for the Soulframe installation: reads face tracking\n" +
			"data from shared memory, drives the interaction state machine, and\n" +
			"conducts the display and audio subsystems.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init(opts.LogLevel)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newCurvesCommand())

	return cmd
}
