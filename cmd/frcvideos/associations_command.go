package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
	"frcvideos/internal/autorename"
	"frcvideos/internal/config"
	"frcvideos/internal/daemon"
	"frcvideos/internal/database"
	"frcvideos/internal/settings"
)

func newAssociationsCommand(ctx *commandContext) *cobra.Command {
	assocCmd := &cobra.Command{
		Use:     "associations",
		Aliases: []string{"assoc"},
		Short:   "Inspect and correct recording associations",
	}
	assocCmd.AddCommand(newAssociationsListCommand(ctx))
	assocCmd.AddCommand(newAssociationsShowCommand(ctx))
	assocCmd.AddCommand(newAssociationsOverrideCommand(ctx))
	return assocCmd
}

// activeEventKey resolves the event from the flag, else the effective
// settings.
func activeEventKey(ctx context.Context, cfg *config.Config, db *database.DB, flag string) (string, error) {
	if key := strings.ToLower(strings.TrimSpace(flag)); key != "" {
		return key, nil
	}
	resolved, err := settings.NewProvider(settings.NewStore(db, nil), cfg).AutoRename(ctx)
	if err != nil {
		return "", err
	}
	if resolved.EventKey == "" {
		return "", fmt.Errorf("no active event; pass --event or set %s", settings.KeyEventKey)
	}
	return resolved.EventKey, nil
}

func newAssociationsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag, eventFlag, labelFlag string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List associations for the active event",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := autorename.ListFilter{Label: strings.TrimSpace(labelFlag), Limit: limit}
			if strings.TrimSpace(statusFlag) != "" {
				status, err := autorename.ParseStatus(statusFlag)
				if err != nil {
					return err
				}
				filter.Status = status
			}

			var list []*autorename.Association
			err := ctx.withDatabase(cmd.Context(), func(cfg *config.Config, db *database.DB) error {
				eventKey, err := activeEventKey(cmd.Context(), cfg, db, eventFlag)
				if err != nil {
					return err
				}
				filter.EventKey = eventKey
				list, err = autorename.NewStore(db, nil).List(cmd.Context(), filter)
				return err
			})
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, api.AssociationListResponse{Associations: api.FromAssociations(list)})
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No associations")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, a := range list {
				rows = append(rows, []string{
					truncate(a.FilePath, 48),
					displayName(string(a.Status)),
					a.MatchName,
					fmt.Sprintf("%d/%d", a.AssociationAttempts, a.MaxAssociationAttempts),
					a.NewFileName,
					yesNo(a.RenameCompleted),
				})
			}
			fmt.Fprint(out, renderTable([]string{"File", "Status", "Match", "Attempts", "New Name", "Renamed"}, rows, 3))
			return nil
		},
	}
	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (unmatched, weak, strong, failed)")
	cmd.Flags().StringVar(&eventFlag, "event", "", "Event key (defaults to the active event)")
	cmd.Flags().StringVar(&labelFlag, "label", "", "Filter by video label directory")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newAssociationsShowCommand(ctx *commandContext) *cobra.Command {
	var eventFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <label/file>",
		Short: "Show one association in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, err := requireArg(args, "file path")
			if err != nil {
				return err
			}
			var a *autorename.Association
			err = ctx.withDatabase(cmd.Context(), func(cfg *config.Config, db *database.DB) error {
				eventKey, err := activeEventKey(cmd.Context(), cfg, db, eventFlag)
				if err != nil {
					return err
				}
				a, err = autorename.NewStore(db, nil).Get(cmd.Context(), autorename.Key{EventKey: eventKey, FilePath: filePath})
				return err
			})
			if err != nil {
				return err
			}
			if a == nil {
				return fmt.Errorf("no association for %s", filePath)
			}
			dto := api.FromAssociation(a)
			if asJSON {
				return writeJSON(cmd, api.AssociationResponse{Association: dto})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, associationRows(dto)))
			return nil
		},
	}
	cmd.Flags().StringVar(&eventFlag, "event", "", "Event key (defaults to the active event)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func associationRows(a api.Association) [][]string {
	rows := [][]string{
		{"Event", a.EventKey},
		{"File", a.FilePath},
		{"Status", displayName(a.Status)},
	}
	add := func(label, value string) {
		if value != "" {
			rows = append(rows, []string{label, value})
		}
	}
	add("Reason", a.StatusReason)
	add("Recorded", a.VideoTimestamp)
	if a.MatchKey != "" {
		add("Match", fmt.Sprintf("%s (%s)", a.MatchName, a.MatchKey))
	}
	rows = append(rows, []string{"Attempts", fmt.Sprintf("%d/%d", a.AssociationAttempts, a.MaxAssociationAttempts)})
	if a.VideoDurationSecs != nil {
		add("Duration", flagged(strconv.FormatFloat(*a.VideoDurationSecs, 'f', 1, 64)+"s", a.VideoDurationAbnormal))
	}
	if a.StartTimeDiffSecs != nil {
		add("Start offset", flagged(strconv.FormatInt(*a.StartTimeDiffSecs, 10)+"s", a.StartTimeDiffAbnormal))
	}
	if a.OrderingIssueMatchKey != "" {
		add("Ordering issue", fmt.Sprintf("%s (%s)", a.OrderingIssueMatchName, a.OrderingIssueMatchKey))
	}
	add("New name", a.NewFileName)
	add("Rename job", a.RenameJobID)
	add("Rename after", a.RenameAfter)
	rows = append(rows, []string{"Renamed", yesNo(a.RenameCompleted)})
	add("Updated", a.UpdatedAt)
	return rows
}

func flagged(value string, abnormal bool) string {
	if abnormal {
		return value + " (abnormal)"
	}
	return value
}

func newAssociationsOverrideCommand(ctx *commandContext) *cobra.Command {
	var eventFlag, matchFlag, statusFlag string
	var local bool

	cmd := &cobra.Command{
		Use:   "override <label/file>",
		Short: "Manually set an association's status and match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, err := requireArg(args, "file path")
			if err != nil {
				return err
			}
			req := autorename.OverrideRequest{
				FilePath: filePath,
				MatchKey: strings.TrimSpace(matchFlag),
				Status:   strings.TrimSpace(statusFlag),
			}
			err = ctx.withDatabase(cmd.Context(), func(cfg *config.Config, db *database.DB) error {
				req.EventKey, err = activeEventKey(cmd.Context(), cfg, db, eventFlag)
				return err
			})
			if err != nil {
				return err
			}

			var result api.Association
			reached := false
			if !local {
				reached, err = ctx.viaDaemon(func(client *api.Client) error {
					result, err = client.Override(cmd.Context(), req)
					return err
				})
				if err != nil {
					return err
				}
			}
			if !reached {
				err = ctx.withComponents(cmd.Context(), func(cfg *config.Config, comps daemon.Components) error {
					a, err := comps.Matcher.Override(cmd.Context(), req)
					if err != nil {
						return err
					}
					result = api.FromAssociation(a)
					return nil
				})
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s is now %s", result.FilePath, displayName(result.Status))
			if result.MatchName != "" {
				fmt.Fprintf(out, " (%s)", result.MatchName)
			}
			fmt.Fprintln(out)
			if result.NewFileName != "" {
				fmt.Fprintf(out, "Rename to %s scheduled for %s\n", result.NewFileName, result.RenameAfter)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventFlag, "event", "", "Event key (defaults to the active event)")
	cmd.Flags().StringVar(&matchFlag, "match", "", "Match key, e.g. 2023gadal_qm12 (required for strong and weak)")
	cmd.Flags().StringVar(&statusFlag, "status", "strong", "New status (unmatched, weak, strong, failed)")
	cmd.Flags().BoolVar(&local, "local", false, "Apply in this process instead of the daemon")
	return cmd
}
