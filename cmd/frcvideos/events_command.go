package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"frcvideos/internal/api"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var since uint64
	var follow, asJSON bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print association update events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("paths.api_bind is empty; the daemon API is disabled")
			}
			out := cmd.OutOrStdout()
			cursor := since
			for {
				resp, err := client.Events(cmd.Context(), cursor, follow)
				if err != nil {
					if follow && errors.Is(err, context.Canceled) {
						return nil
					}
					if api.IsUnavailable(err) {
						return errors.New("daemon is not running")
					}
					return err
				}
				for _, evt := range resp.Events {
					if err := printEvent(cmd, out, evt, asJSON); err != nil {
						return err
					}
				}
				cursor = resp.Next
				if !follow {
					return nil
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only events after this sequence number")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output one JSON object per event")
	return cmd
}

func printEvent(cmd *cobra.Command, out io.Writer, evt api.Event, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, evt)
	}
	_, err := fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", evt.Sequence, evt.Timestamp, evt.EventKey, evt.FilePath)
	return err
}
