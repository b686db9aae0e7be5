package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/config"
	"lectern/internal/deps"
	"lectern/internal/ipc"
	"lectern/internal/runner"
)

type dependencyReport struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type statusPayload struct {
	DaemonRunning bool                `json:"daemon_running"`
	Daemon        *ipc.StatusResponse `json:"daemon,omitempty"`
	Dependencies  []dependencyReport  `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and run status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			payload := statusPayload{Dependencies: dependencyReports(cfg)}

			client, err := ctx.dialClient()
			if err == nil {
				defer client.Close()
				resp, statusErr := client.Status()
				if statusErr != nil {
					return statusErr
				}
				payload.DaemonRunning = true
				payload.Daemon = resp
			}

			if asJSON {
				return writeJSON(cmd, payload)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if payload.Daemon == nil {
				fmt.Fprintln(stdout, renderStatusLine("State", statusWarn, "not running (start with `lectern daemon start`)", colorize))
			} else {
				d := payload.Daemon
				fmt.Fprintln(stdout, renderStatusLine("State", statusOK, fmt.Sprintf("running (pid %d)", d.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Uptime", statusInfo, time.Since(d.StartedAt).Round(time.Second).String(), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, d.SocketPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Log", statusInfo, d.LogPath, colorize))
				fmt.Fprintln(stdout, renderStatusLine("History", statusInfo, d.HistoryPath, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Run", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if payload.Daemon == nil {
				fmt.Fprintln(stdout, renderStatusLine("State", statusInfo, "unknown (daemon not running)", colorize))
			} else {
				printRunStatus(stdout, payload.Daemon.Run, colorize)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, dep := range payload.Dependencies {
				kind := statusOK
				detail := "ready"
				if !dep.Available {
					kind = statusError
					detail = dep.Detail
				}
				fmt.Fprintln(stdout, renderStatusLine(dep.Name, kind, detail, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit status as JSON")
	return cmd
}

func printRunStatus(stdout io.Writer, run runner.Status, colorize bool) {
	if !run.Running {
		fmt.Fprintln(stdout, renderStatusLine("State", statusInfo, "idle", colorize))
		return
	}
	state := "running"
	kind := statusOK
	switch {
	case run.Paused:
		state = "paused"
		kind = statusWarn
	case run.StopRequested:
		state = "stopping"
		kind = statusWarn
	}
	fmt.Fprintln(stdout, renderStatusLine("State", kind, state, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Run ID", statusInfo, run.RunID, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.RFC3339), colorize))
	if run.Stage != nil {
		fmt.Fprintln(stdout, renderStatusLine("Folder", statusInfo,
			fmt.Sprintf("%d/%d %s", run.Stage.Index, run.Stage.Total, run.Stage.Folder), colorize))
	}
	fmt.Fprintln(stdout, renderStatusLine("Output", statusInfo, run.OutputFolder, colorize))
	if len(run.Counts) > 0 {
		fmt.Fprintln(stdout, renderStatusLine("Counts", statusInfo, formatCounts(run.Counts), colorize))
	}
}

func dependencyReports(cfg *config.Config) []dependencyReport {
	if cfg == nil {
		return nil
	}
	checks := deps.Check([]deps.Requirement{
		{Name: "converter", Kind: deps.KindBinary, Target: cfg.Engines.Converter},
		{Name: "engine", Kind: deps.KindBinary, Target: cfg.Engines.Engine},
		{Name: "model", Kind: deps.KindFile, Target: cfg.Engines.Model},
	})
	reports := make([]dependencyReport, 0, len(checks))
	for _, check := range checks {
		reports = append(reports, dependencyReport{
			Name:      check.Name,
			Available: check.Available,
			Detail:    check.Detail,
		})
	}
	return reports
}
