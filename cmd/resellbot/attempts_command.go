package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ResellBot/internal/app"
	"ResellBot/internal/domain"
	"ResellBot/internal/textutil"
)

const attemptLogWidth = 60

func newAttemptsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <listing-id>",
		Short: "Show the outreach log of one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				attempts, err := a.Attempts(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(attempts) == 0 {
					fmt.Fprintf(out, "No send attempts for listing %s.\n", args[0])
					return nil
				}
				colorize := colorEnabled(out)
				rows := make([][]string, 0, len(attempts))
				for _, rec := range attempts {
					status := string(rec.Status)
					if rec.Status == domain.SendStatusSent {
						status = paint(colorize, color.FgGreen, status)
					} else {
						status = paint(colorize, color.FgRed, status)
					}
					rows = append(rows, []string{
						strconv.FormatInt(rec.ID, 10),
						status,
						rec.SentAt.Local().Format(time.DateTime),
						textutil.Truncate(rec.Log, attemptLogWidth),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Sent at", "Log"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}
