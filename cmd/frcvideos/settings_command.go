package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"frcvideos/internal/config"
	"frcvideos/internal/database"
	"frcvideos/internal/settings"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "View and override runtime auto-rename settings",
	}
	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))
	settingsCmd.AddCommand(newSettingsUnsetCommand(ctx))
	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show every setting with its effective value",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resolved []settings.Resolved
			err := ctx.withDatabase(cmd.Context(), func(cfg *config.Config, db *database.DB) error {
				var err error
				resolved, err = settings.NewProvider(settings.NewStore(db, nil), cfg).Effective(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resolved)
			}
			rows := make([][]string, 0, len(resolved))
			for _, r := range resolved {
				rows = append(rows, []string{string(r.Key), r.Value, string(r.Source)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Key", "Value", "Source"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Override a setting; the daemon picks it up on its next pass",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := settings.ParseKey(args[0])
			if err != nil {
				return err
			}
			var stored string
			err = ctx.withDatabase(cmd.Context(), func(_ *config.Config, db *database.DB) error {
				stored, err = settings.NewStore(db, nil).Set(cmd.Context(), key, args[1])
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, stored)
			return nil
		},
	}
}

func newSettingsUnsetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove an override so the configuration value applies again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := settings.ParseKey(args[0])
			if err != nil {
				return err
			}
			var removed bool
			err = ctx.withDatabase(cmd.Context(), func(_ *config.Config, db *database.DB) error {
				removed, err = settings.NewStore(db, nil).Unset(cmd.Context(), key)
				return err
			})
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s was not overridden\n", key)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reset to configuration value\n", key)
			return nil
		},
	}
}
