package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/notify"
	"lectern/internal/runlog"
	"lectern/internal/runner"
	"lectern/internal/watcher"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var req runner.Request

	cmd := &cobra.Command{
		Use:   "watch FOLDER...",
		Short: "Watch folders and transcribe new media automatically",
		Long: "Watch folders in the foreground and start a transcription run " +
			"whenever new media settles. Runs in this process without the " +
			"daemon; press Ctrl-C to stop.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req.InputFolders = args
			applyRequestDefaults(cfg, &req)

			logger, err := logging.New(logging.Options{
				Level:   cfg.Logging.Level,
				Format:  cfg.Logging.Format,
				Outputs: []string{"stdout"},
			})
			if err != nil {
				return err
			}

			store, err := runlog.Open(cfg.HistoryPath())
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer store.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			run := runner.New(runner.Options{
				Logger:           logger,
				Hub:              runner.NewHub(cfg.Runner.EventBuffer),
				History:          store,
				Notifier:         notify.NewService(cfg.Notify.NtfyTopic, cfg.NotifyTimeout(), logger),
				DefaultConverter: cfg.Engines.Converter,
				StopGrace:        cfg.StopGrace(),
				Context:          signalCtx,
			})

			w, err := watcher.New(run, watcher.Options{
				Request:  req,
				Settle:   cfg.WatchSettle(),
				Interval: cfg.WatchInterval(),
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			if err := w.Start(signalCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %d folder(s), output %s (Ctrl-C to stop)\n",
				len(args), req.OutputFolder)

			<-signalCtx.Done()
			w.Stop()
			waitForRunEnd(run, 10*time.Second)
			fmt.Fprintln(cmd.OutOrStdout(), "Watch stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.OutputFolder, "output", "o", "", "Output root for transcripts (defaults to the configured output)")
	cmd.Flags().StringVar(&req.EnginePath, "engine", "", "Recognition engine binary")
	cmd.Flags().StringVar(&req.ModelPath, "model", "", "Recognition model file")
	cmd.Flags().StringVar(&req.ConverterPath, "converter", "", "Audio converter binary")
	cmd.Flags().IntVar(&req.Threads, "threads", 0, "Recognition threads (defaults to the configured count)")
	cmd.Flags().BoolVar(&req.FastScan, "fast-scan", false, "Skip derived document generation")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Re-transcribe even when artifacts exist")
	cmd.Flags().BoolVar(&req.NoRecursive, "no-recursive", false, "Do not descend into subfolders")
	cmd.Flags().BoolVar(&req.KeepAudio, "keep-audio", false, "Keep intermediate WAV files")
	cmd.Flags().StringVar(&req.ExecutorOverride, "executor", "", "Alternative executor binary")

	return cmd
}

// applyRequestDefaults fills unset request fields from the configuration,
// the same defaults the daemon applies for IPC starts.
func applyRequestDefaults(cfg *config.Config, req *runner.Request) {
	if cfg == nil || req == nil {
		return
	}
	if strings.TrimSpace(req.OutputFolder) == "" {
		req.OutputFolder = cfg.Output.DefaultOutput
	}
	if strings.TrimSpace(req.ConverterPath) == "" {
		req.ConverterPath = cfg.Engines.Converter
	}
	if strings.TrimSpace(req.EnginePath) == "" {
		req.EnginePath = cfg.Engines.Engine
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		req.ModelPath = cfg.Engines.Model
	}
	if req.Threads <= 0 {
		req.Threads = cfg.Engines.Threads
	}
	if cfg.Output.FastScan {
		req.FastScan = true
	}
	if cfg.Output.KeepAudio {
		req.KeepAudio = true
	}
}

// waitForRunEnd gives an interrupted run a moment to record its finish
// before the process exits.
func waitForRunEnd(run *runner.Runner, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !run.Status().Running {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
