package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
	"frcvideos/internal/autorename"
	"frcvideos/internal/config"
	"frcvideos/internal/daemon"
)

func newAutoRenameCommand(ctx *commandContext) *cobra.Command {
	autoCmd := &cobra.Command{
		Use:     "autorename",
		Aliases: []string{"auto-rename"},
		Short:   "Auto-rename matching passes",
	}
	autoCmd.AddCommand(newAutoRenameRunCommand(ctx))
	return autoCmd
}

func newAutoRenameRunCommand(ctx *commandContext) *cobra.Command {
	var force, refresh, local, asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one matching pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			var summary api.PassSummary
			if !local {
				reached, err := ctx.viaDaemon(func(client *api.Client) error {
					pass, err := client.Run(cmd.Context(), force, refresh)
					summary = pass
					return err
				})
				if err != nil {
					return err
				}
				if reached {
					return printPass(cmd, summary, asJSON, "")
				}
			}

			err := ctx.withComponents(cmd.Context(), func(cfg *config.Config, comps daemon.Components) error {
				pass, err := comps.Matcher.Run(cmd.Context(), autorename.RunOptions{Force: force})
				if errors.Is(err, autorename.ErrPassInProgress) {
					return errors.New("another matching pass is running; try again shortly")
				}
				summary = api.FromPassSummary(pass)
				return err
			})
			if err != nil {
				return err
			}
			return printPass(cmd, summary, asJSON, "Pass ran locally; scheduled renames execute while the daemon runs.")
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Run even when auto rename is disabled")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop the daemon's cached match list first")
	cmd.Flags().BoolVar(&local, "local", false, "Run in this process instead of the daemon")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func printPass(cmd *cobra.Command, pass api.PassSummary, asJSON bool, note string) error {
	if asJSON {
		return writeJSON(cmd, pass)
	}
	out := cmd.OutOrStdout()
	if pass.Skipped {
		fmt.Fprintf(out, "Pass skipped: %s\n", pass.SkipReason)
		return nil
	}
	renderPass(out, pass)
	if note != "" {
		fmt.Fprintln(out, note)
	}
	return nil
}

func renderPass(out io.Writer, pass api.PassSummary) {
	rows := [][]string{
		{"Event", pass.EventKey},
		{"Files seen", strconv.Itoa(pass.FilesSeen)},
		{"New associations", strconv.Itoa(pass.NewAssociations)},
		{"Processed", strconv.Itoa(pass.Processed)},
		{"Strong", strconv.Itoa(pass.Strong)},
		{"Weak", strconv.Itoa(pass.Weak)},
		{"Unmatched", strconv.Itoa(pass.Unmatched)},
		{"Failed", strconv.Itoa(pass.Failed)},
		{"Downgraded", strconv.Itoa(pass.Downgraded)},
		{"Errors", strconv.Itoa(pass.Errors)},
		{"Duration", fmt.Sprintf("%.1fs", pass.DurationSecs)},
	}
	fmt.Fprint(out, renderTable([]string{"Pass " + pass.RunID, ""}, rows, 1))
}
