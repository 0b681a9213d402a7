package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ResellBot/internal/app"
)

func newTemplatesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage outreach message templates",
	}
	cmd.AddCommand(newTemplatesListCommand(ctx))
	cmd.AddCommand(newTemplatesAddCommand(ctx))
	return cmd
}

func newTemplatesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active templates in rotation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				templates, err := a.Templates(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(templates) == 0 {
					fmt.Fprintln(out, "No active templates; the default message is used.")
					return nil
				}
				rows := make([][]string, 0, len(templates))
				for _, t := range templates {
					rows = append(rows, []string{strconv.FormatInt(t.ID, 10), t.Content})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Text"}, rows, []columnAlignment{alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newTemplatesAddCommand(ctx *commandContext) *cobra.Command {
	var inactive bool

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a template to the rotation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return errors.New("template text is required")
			}
			return ctx.withApp(cmd.Context(), func(a *app.Application) error {
				if err := a.AddTemplate(cmd.Context(), text, !inactive); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Template added.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Store the template without adding it to the rotation")
	return cmd
}
