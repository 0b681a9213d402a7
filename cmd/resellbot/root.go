package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var retryFailed bool

	ctx := newCommandContext(&configFlag, &retryFailed)

	rootCmd := &cobra.Command{
		Use:           "resellbot",
		Short:         "Marketplace listing triage and outreach",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML or TOML)")
	rootCmd.PersistentFlags().BoolVar(&retryFailed, "retry-failed", false, "Re-queue listings whose earlier send attempts all failed")

	rootCmd.AddCommand(newRunCommand(ctx))
	for _, cmd := range newModeCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newTemplatesCommand(ctx))
	rootCmd.AddCommand(newAttemptsCommand(ctx))

	return rootCmd
}
