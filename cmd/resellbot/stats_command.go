package main

import (
	"github.com/spf13/cobra"

	"ResellBot/internal/app"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show stored listings and outreach counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				stats, err := a.Stats(cmd.Context())
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats, colorEnabled(cmd.OutOrStdout()))
				return nil
			})
		},
	}
}
