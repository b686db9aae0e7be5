package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent run events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()

				resp, err := client.Events(ipc.EventsRequest{})
				if err != nil {
					return err
				}
				events := resp.Events
				if limit > 0 && len(events) > limit {
					events = events[len(events)-limit:]
				}
				for _, evt := range events {
					if line := renderEvent(evt); line != "" {
						fmt.Fprintln(stdout, line)
					}
				}
				if !follow {
					if len(events) == 0 {
						fmt.Fprintln(stdout, "No run events recorded")
					}
					return nil
				}

				cursor := resp.Next
				for {
					if err := cmd.Context().Err(); err != nil {
						return nil
					}
					resp, err := client.Events(ipc.EventsRequest{
						Since:      cursor,
						Follow:     true,
						WaitMillis: 1000,
					})
					if err != nil {
						return err
					}
					cursor = resp.Next
					for _, evt := range resp.Events {
						if line := renderEvent(evt); line != "" {
							fmt.Fprintln(stdout, line)
						}
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most the last N buffered events")
	return cmd
}
