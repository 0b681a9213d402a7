package main

import (
	"github.com/spf13/cobra"

	"ResellBot/internal/app"
	"ResellBot/internal/usecase"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one session (full, scrape, send or login)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := usecase.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			return runMode(cmd, ctx, mode)
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(usecase.ModeFull), "Run mode: full, scrape, send or login")
	return cmd
}

// newModeCommands exposes each mode as its own subcommand.
func newModeCommands(ctx *commandContext) []*cobra.Command {
	modes := []struct {
		mode  usecase.Mode
		short string
	}{
		{usecase.ModeScrape, "Fetch, triage and store new listings without messaging"},
		{usecase.ModeSend, "Message stored listings that passed triage"},
		{usecase.ModeLogin, "Verify or establish the marketplace session"},
	}

	cmds := make([]*cobra.Command, 0, len(modes))
	for _, m := range modes {
		cmds = append(cmds, &cobra.Command{
			Use:   string(m.mode),
			Short: m.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMode(cmd, ctx, m.mode)
			},
		})
	}
	return cmds
}

func runMode(cmd *cobra.Command, ctx *commandContext, mode usecase.Mode) error {
	return ctx.withApp(cmd.Context(), func(a *app.Application) error {
		report, err := a.Run(cmd.Context(), mode)
		if mode != usecase.ModeLogin {
			printReport(cmd.OutOrStdout(), report, colorEnabled(cmd.OutOrStdout()))
		}
		return err
	})
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline on the configured interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := usecase.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				return a.Watch(cmd.Context(), mode)
			})
		},
	}
	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(usecase.ModeFull), "Run mode for each tick")
	return cmd
}
