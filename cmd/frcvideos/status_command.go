package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
	"frcvideos/internal/autorename"
	"frcvideos/internal/config"
	"frcvideos/internal/database"
	"frcvideos/internal/jobqueue"
	"frcvideos/internal/preflight"
	"frcvideos/internal/settings"
)

type statusReport struct {
	Daemon       *api.DaemonStatus  `json:"daemon,omitempty"`
	Preflight    []preflight.Result `json:"preflight"`
	EventKey     string             `json:"eventKey"`
	Associations map[string]int     `json:"associations"`
	Jobs         map[string]int     `json:"jobs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, environment and auto-rename status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{Preflight: preflight.RunAll(cmd.Context(), cfg)}

			if _, err := ctx.viaDaemon(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err == nil {
					report.Daemon = &status
				}
				return err
			}); err != nil {
				return err
			}

			if report.Daemon != nil {
				report.EventKey = report.Daemon.EventKey
				report.Associations = report.Daemon.AssociationCounts
				report.Jobs = report.Daemon.JobCounts
			} else if err := ctx.withDatabase(cmd.Context(), func(cfg *config.Config, db *database.DB) error {
				return localCounts(cmd.Context(), cfg, db, &report)
			}); err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			renderStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func localCounts(ctx context.Context, cfg *config.Config, db *database.DB, report *statusReport) error {
	provider := settings.NewProvider(settings.NewStore(db, nil), cfg)
	resolved, err := provider.AutoRename(ctx)
	if err != nil {
		return err
	}
	report.EventKey = resolved.EventKey
	report.Associations = map[string]int{}
	report.Jobs = map[string]int{}

	if resolved.EventKey != "" {
		statuses, err := autorename.NewStore(db, nil).Statuses(ctx, resolved.EventKey)
		if err != nil {
			return err
		}
		for _, status := range statuses {
			report.Associations[string(status)]++
		}
	}
	jobs, err := jobqueue.New(db).List(ctx, jobqueue.ListFilter{})
	if err != nil {
		return err
	}
	now := time.Now()
	for _, job := range jobs {
		report.Jobs[string(job.State(now))]++
	}
	return nil
}

func renderStatus(out io.Writer, report statusReport) {
	colorize := shouldColorize(out)

	renderSectionHeader(out, "Daemon", colorize)
	if report.Daemon == nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running (start with `frcvideos daemon`)", colorize))
	} else {
		d := report.Daemon
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", d.PID), colorize))
		kind, detail := statusWarn, "disabled"
		if d.AutoRenameEnabled {
			kind, detail = statusOK, "enabled"
		}
		fmt.Fprintln(out, renderStatusLine("Auto rename", kind, detail, colorize))
		if d.LastPass != nil {
			fmt.Fprintln(out, renderStatusLine("Last pass", passKind(*d.LastPass), passDetail(*d.LastPass), colorize))
		}
	}
	eventDetail := report.EventKey
	eventKind := statusOK
	if eventDetail == "" {
		eventKind, eventDetail = statusError, "not configured"
	}
	fmt.Fprintln(out, renderStatusLine("Event", eventKind, eventDetail, colorize))
	fmt.Fprintln(out)

	renderSectionHeader(out, "Environment", colorize)
	for _, result := range report.Preflight {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	fmt.Fprintln(out)

	renderSectionHeader(out, "Associations", colorize)
	rows := make([][]string, 0, len(autorename.Statuses))
	for _, status := range autorename.Statuses {
		rows = append(rows, []string{displayName(string(status)), strconv.Itoa(report.Associations[string(status)])})
	}
	fmt.Fprint(out, renderTable([]string{"Status", "Count"}, rows, 1))
	fmt.Fprintln(out)

	renderSectionHeader(out, "Rename Jobs", colorize)
	rows = rows[:0]
	for _, state := range []jobqueue.State{jobqueue.StatePending, jobqueue.StateScheduled, jobqueue.StateRunning, jobqueue.StateFailed} {
		rows = append(rows, []string{displayName(string(state)), strconv.Itoa(report.Jobs[string(state)])})
	}
	fmt.Fprint(out, renderTable([]string{"State", "Count"}, rows, 1))
}

func passKind(pass api.PassSummary) statusKind {
	switch {
	case pass.Errors > 0:
		return statusWarn
	case pass.Skipped:
		return statusInfo
	default:
		return statusOK
	}
}

func passDetail(pass api.PassSummary) string {
	when := pass.StartedAt
	if parsed, err := time.Parse(time.RFC3339, pass.StartedAt); err == nil {
		when = parsed.Local().Format("15:04:05")
	}
	if pass.Skipped {
		return fmt.Sprintf("%s skipped (%s)", when, pass.SkipReason)
	}
	return fmt.Sprintf("%s files=%d strong=%d weak=%d failed=%d errors=%d",
		when, pass.FilesSeen, pass.Strong, pass.Weak, pass.Failed, pass.Errors)
}
