package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lectern/internal/batch"
	"lectern/internal/logging"
	"lectern/internal/runner"
	"lectern/internal/services/convert"
	"lectern/internal/services/recognize"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var inputs []string
	var opts batch.Options
	var converterPath string
	var before string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the transcription pipeline over folders (executor)",
		Long: "Run the transcription pipeline over folders in this process. " +
			"This is the executor the daemon spawns per input folder; progress " +
			"lines go to stdout, logs to stderr.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(inputs) == 0 {
				return fmt.Errorf("at least one --input folder is required")
			}
			if strings.TrimSpace(opts.OutputRoot) == "" {
				return fmt.Errorf("--output is required")
			}

			cfg := ctx.configValue()
			if cfg != nil {
				if strings.TrimSpace(opts.EnginePath) == "" {
					opts.EnginePath = cfg.Engines.Engine
				}
				if strings.TrimSpace(opts.ModelPath) == "" {
					opts.ModelPath = cfg.Engines.Model
				}
				if strings.TrimSpace(converterPath) == "" {
					converterPath = cfg.Engines.Converter
				}
				if opts.Threads <= 0 {
					opts.Threads = cfg.Engines.Threads
				}
			}
			if strings.TrimSpace(before) != "" {
				cutoff, err := time.Parse(batch.BucketLayout, before)
				if err != nil {
					return fmt.Errorf("parse --before: expected YYYY-MM-DD: %w", err)
				}
				opts.BeforeDate = cutoff
			}
			if strings.TrimSpace(opts.PauseMarker) == "" {
				opts.PauseMarker = filepath.Join(opts.OutputRoot, runner.PauseMarkerName)
			}
			if strings.TrimSpace(opts.StopMarker) == "" {
				opts.StopMarker = filepath.Join(opts.OutputRoot, runner.StopMarkerName)
			}

			level := ""
			format := ""
			if cfg != nil {
				level = cfg.Logging.Level
				format = cfg.Logging.Format
			}
			logger, err := logging.New(logging.Options{
				Level:   level,
				Format:  format,
				Outputs: []string{"stderr"},
			})
			if err != nil {
				return err
			}

			converter := convert.NewCLI(convert.WithBinary(converterPath))
			recognizer := recognize.NewCLI(recognize.WithBinary(opts.EnginePath))

			failed := 0
			for _, input := range inputs {
				folderOpts := opts
				folderOpts.InputDir = input
				run := batch.New(folderOpts, converter, recognizer, logger, cmd.OutOrStdout())
				summary, err := run.Run(cmd.Context())
				if err != nil {
					return err
				}
				failed += summary.Counts[batch.StatusError]
			}
			if failed > 0 {
				return fmt.Errorf("completed with %d failed files", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&inputs, "input", nil, "Input folder (repeatable)")
	cmd.Flags().StringVar(&opts.OutputRoot, "output", "", "Output root for transcripts")
	cmd.Flags().StringVar(&opts.EnginePath, "engine", "", "Recognition engine binary")
	cmd.Flags().StringVar(&opts.ModelPath, "model", "", "Recognition model file")
	cmd.Flags().StringVar(&converterPath, "converter", "", "Audio converter binary")
	cmd.Flags().IntVar(&opts.Threads, "threads", 0, "Recognition threads")
	cmd.Flags().StringVar(&before, "before", "", "Only process recordings dated before YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Process at most N files per folder")
	cmd.Flags().BoolVar(&opts.FastScan, "fast-scan", false, "Skip derived document generation")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-transcribe even when artifacts exist")
	cmd.Flags().BoolVar(&opts.NoRecursive, "no-recursive", false, "Do not descend into subfolders")
	cmd.Flags().BoolVar(&opts.KeepAudio, "keep-audio", false, "Keep intermediate WAV files")
	cmd.Flags().StringVar(&opts.PauseMarker, "pause-marker", "", "Pause marker file path")
	cmd.Flags().StringVar(&opts.StopMarker, "stop-marker", "", "Stop marker file path")

	return cmd
}
