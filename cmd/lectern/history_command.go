package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past transcription runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				if len(resp.Runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
					return nil
				}
				table := renderTable(
					[]string{"Run", "Started", "Duration", "Folders", "Result", "Counts"},
					buildHistoryRows(resp.Runs),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Show at most N runs")
	return cmd
}

func buildHistoryRows(runs []ipc.RunRecord) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortRunID(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			historyDuration(run),
			fmt.Sprintf("%d", len(run.Folders)),
			historyResult(run),
			formatCounts(run.Counts),
		})
	}
	return rows
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func historyDuration(run ipc.RunRecord) string {
	if !run.Completed || run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func historyResult(run ipc.RunRecord) string {
	switch {
	case !run.Completed:
		return "running"
	case run.Success:
		return "ok"
	case strings.TrimSpace(run.Message) != "":
		return "failed: " + run.Message
	default:
		return "failed"
	}
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}
