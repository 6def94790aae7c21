package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
	"frcvideos/internal/config"
	"frcvideos/internal/database"
	"frcvideos/internal/jobqueue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and retry durable rename jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var failedOnly, asJSON bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued, running and failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var jobs []*jobqueue.Job
			err := ctx.withDatabase(cmd.Context(), func(_ *config.Config, db *database.DB) error {
				var err error
				jobs, err = jobqueue.New(db).List(cmd.Context(), jobqueue.ListFilter{FailedOnly: failedOnly, Limit: limit})
				return err
			})
			if err != nil {
				return err
			}

			now := time.Now()
			if asJSON {
				resp := api.JobListResponse{Jobs: make([]api.Job, 0, len(jobs))}
				for _, job := range jobs {
					resp.Jobs = append(resp.Jobs, api.FromJob(job, now))
				}
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					job.Task,
					displayName(string(job.State(now))),
					job.RunAt.Local().Format("2006-01-02 15:04:05"),
					strconv.Itoa(job.Attempts) + "/" + strconv.Itoa(job.MaxAttempts),
					truncate(job.LastError, 60),
				})
			}
			fmt.Fprint(out, renderTable([]string{"ID", "Task", "State", "Run At", "Attempts", "Last Error"}, rows, 4))
			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show permanently failed jobs")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Reset failed jobs so they run again (all failed jobs when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var retried int64
			err := ctx.withDatabase(cmd.Context(), func(_ *config.Config, db *database.DB) error {
				var err error
				retried, err = jobqueue.New(db).RetryFailed(cmd.Context(), args...)
				return err
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if retried == 0 {
				fmt.Fprintln(out, "No failed jobs to retry")
				return nil
			}
			fmt.Fprintf(out, "Retried %d job(s)\n", retried)
			return nil
		},
	}
}
