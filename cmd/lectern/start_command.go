package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/daemonctl"
	"lectern/internal/ipc"
	"lectern/internal/runner"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var req runner.Request
	var follow bool

	cmd := &cobra.Command{
		Use:   "start FOLDER...",
		Short: "Start a transcription run over the given folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			req.InputFolders = args
			return ctx.withClient(func(client *ipc.Client) error {
				var cursor uint64
				if follow {
					c, err := currentEventCursor(client)
					if err != nil {
						return err
					}
					cursor = c
				}

				resp, err := client.StartRun(req)
				if err != nil {
					return err
				}
				status := resp.Status
				fmt.Fprintf(stdout, "Run %s started (%d folders -> %s)\n",
					status.RunID, len(status.Folders), status.OutputFolder)

				if !follow {
					return nil
				}
				finish, err := followEvents(cmd, client, cursor)
				if err != nil {
					return err
				}
				if finish != nil && !finish.Success {
					return fmt.Errorf("run failed: %s", finish.Message)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&req.OutputFolder, "output", "o", "", "Output root for transcripts (defaults to the configured output)")
	cmd.Flags().StringVar(&req.EnginePath, "engine", "", "Recognition engine binary")
	cmd.Flags().StringVar(&req.ModelPath, "model", "", "Recognition model file")
	cmd.Flags().StringVar(&req.ConverterPath, "converter", "", "Audio converter binary")
	cmd.Flags().StringVar(&req.BeforeDate, "before", "", "Only process recordings dated before YYYY-MM-DD")
	cmd.Flags().IntVar(&req.Threads, "threads", 0, "Recognition threads (defaults to the configured count)")
	cmd.Flags().IntVar(&req.Limit, "limit", 0, "Process at most N files per folder")
	cmd.Flags().BoolVar(&req.FastScan, "fast-scan", false, "Skip derived document generation")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Re-transcribe even when artifacts exist")
	cmd.Flags().BoolVar(&req.NoRecursive, "no-recursive", false, "Do not descend into subfolders")
	cmd.Flags().BoolVar(&req.KeepAudio, "keep-audio", false, "Keep intermediate WAV files")
	cmd.Flags().StringVar(&req.ExecutorOverride, "executor", "", "Alternative executor binary")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream run events until the run finishes")

	return cmd
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the active run at the next file boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TogglePause(true)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pause requested for run %s\n", resp.Status.RunID)
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TogglePause(false)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resume requested for run %s\n", resp.Status.RunID)
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the active run after the current file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopRun()
				if err != nil {
					return err
				}
				if !resp.Status.Running {
					fmt.Fprintln(cmd.OutOrStdout(), "No active run")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for run %s\n", resp.Status.RunID)
				return nil
			})
		},
	}
}

// currentEventCursor returns the hub cursor without consuming events, so
// a follow loop started before a run only sees that run's events.
func currentEventCursor(client *ipc.Client) (uint64, error) {
	resp, err := client.Events(ipc.EventsRequest{Since: ^uint64(0)})
	if err != nil {
		return 0, err
	}
	return resp.Next, nil
}

// followEvents renders events until a finish event or context cancel.
func followEvents(cmd *cobra.Command, client *ipc.Client, cursor uint64) (*runner.FinishEvent, error) {
	stdout := cmd.OutOrStdout()
	for {
		if err := cmd.Context().Err(); err != nil {
			return nil, err
		}
		resp, err := client.Events(ipc.EventsRequest{
			Since:      cursor,
			Follow:     true,
			WaitMillis: 1000,
		})
		if err != nil {
			return nil, err
		}
		cursor = resp.Next
		for _, evt := range resp.Events {
			if line := renderEvent(evt); line != "" {
				fmt.Fprintln(stdout, line)
			}
			if evt.Kind == runner.KindFinish && evt.Finish != nil {
				finish := *evt.Finish
				return &finish, nil
			}
		}
	}
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.socketFlag != nil {
		if socket := strings.TrimSpace(*ctx.socketFlag); socket != "" {
			opts.SocketPath = socket
		}
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
