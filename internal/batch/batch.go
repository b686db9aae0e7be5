// Package batch implements the pipeline executor: it scans one input
// folder, buckets and slugs each media file, drives the convert and
// recognize engines, places artifacts atomically, and reports one progress
// line per file on stdout. The run controller launches it as a separate
// process and owns the pause/stop markers it polls.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"lectern/internal/gate"
	"lectern/internal/logging"
	"lectern/internal/progress"
	"lectern/internal/services/convert"
	"lectern/internal/services/recognize"
	"lectern/internal/textutil"
)

// Options configures one executor invocation.
type Options struct {
	InputDir    string
	OutputRoot  string
	EnginePath  string
	ModelPath   string
	Threads     int
	BeforeDate  time.Time
	Limit       int
	FastScan    bool
	Force       bool
	NoRecursive bool
	KeepAudio   bool
	PauseMarker string
	StopMarker  string
	Poll        time.Duration
}

// Runner executes the per-file pipeline over one folder.
type Runner struct {
	opts       Options
	converter  convert.Converter
	recognizer recognize.Recognizer
	checkpoint *gate.Gate
	logger     *slog.Logger
	stdout     io.Writer
}

// New wires a runner. A nil logger discards logs; a nil stdout discards
// progress lines (tests exercise both).
func New(opts Options, converter convert.Converter, recognizer recognize.Recognizer, logger *slog.Logger, stdout io.Writer) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	if stdout == nil {
		stdout = io.Discard
	}
	return &Runner{
		opts:       opts,
		converter:  converter,
		recognizer: recognizer,
		checkpoint: gate.New(opts.PauseMarker, opts.StopMarker, opts.Poll, logging.WithComponent(logger, "gate")),
		logger:     logging.WithComponent(logger, "batch"),
		stdout:     stdout,
	}
}

// Run scans the input folder and processes every candidate in order,
// emitting one progress line per handled file and merging the run index at
// the end. It returns an error only for run-level failures; per-file
// failures are recorded in the summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	if err := os.MkdirAll(r.opts.OutputRoot, 0o755); err != nil {
		return Summary{}, fmt.Errorf("ensure output root: %w", err)
	}

	files, err := Scan(r.opts.InputDir, r.opts.NoRecursive, r.opts.Limit, r.logger)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Total: len(files)}
	r.logger.Info("scan complete",
		logging.String("folder", r.opts.InputDir),
		logging.Int("candidates", len(files)))

	for _, source := range files {
		if r.checkpoint.Stopped() {
			r.logger.Info("stop requested, finishing folder early")
			break
		}
		stopped, err := r.checkpoint.Wait(ctx)
		if err != nil {
			return summary, err
		}
		if stopped {
			r.logger.Info("stop requested, finishing folder early")
			break
		}

		result, stopped, err := r.processFile(ctx, source)
		if err != nil {
			return summary, err
		}
		if stopped {
			r.logger.Info("stop requested mid-file, finishing folder early")
			break
		}
		summary.add(result)
		if err := progress.Fprintln(r.stdout, progress.Record{
			Done:   len(summary.Results),
			Total:  summary.Total,
			Status: result.Status,
			Source: result.Source,
		}); err != nil {
			return summary, fmt.Errorf("emit progress: %w", err)
		}
	}

	if err := writeIndex(r.opts.OutputRoot, summary.Results); err != nil {
		return summary, err
	}
	r.logger.Info("folder complete",
		logging.Int("ok", summary.Counts[StatusOK]),
		logging.Int("skipped", summary.Counts[StatusSkipped]+summary.Counts[StatusSkippedDate]),
		logging.Int("errors", summary.Counts[StatusError]))
	return summary, nil
}

func (r *Runner) processFile(ctx context.Context, source string) (FileResult, bool, error) {
	result := FileResult{Source: source}

	info, err := os.Stat(source)
	if err != nil {
		return r.fail(result, ReasonArtifacts, err), false, nil
	}
	base := filepath.Base(source)
	bucket, bucketDay := InferBucket(base, info.ModTime())
	slug := textutil.Slugify(strings.TrimSuffix(base, filepath.Ext(base)))
	outDir := filepath.Join(r.opts.OutputRoot, bucket, slug)
	result.OutputDir = outDir

	if !r.opts.BeforeDate.IsZero() && bucketDay.After(r.opts.BeforeDate) {
		result.Status = StatusSkippedDate
		return result, false, nil
	}

	if !r.opts.Force {
		if _, err := os.Stat(filepath.Join(outDir, TranscriptName)); err == nil {
			result.Status = StatusSkipped
			return result, false, nil
		}
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return r.fail(result, ReasonArtifacts, err), false, nil
	}

	if stopped, err := r.checkpoint.Wait(ctx); err != nil || stopped {
		return FileResult{}, stopped, err
	}

	wav := filepath.Join(outDir, AudioName)
	r.logger.Info("converting", logging.String("source", source))
	if err := r.converter.Extract(ctx, source, wav); err != nil {
		_ = os.Remove(wav)
		return r.fail(result, ReasonConvert, err), false, nil
	}

	if stopped, err := r.checkpoint.Wait(ctx); err != nil || stopped {
		if !r.opts.KeepAudio {
			_ = os.Remove(wav)
		}
		return FileResult{}, stopped, err
	}

	r.logger.Info("recognizing", logging.String("source", source), logging.Int("threads", r.opts.Threads))
	if _, err := r.recognizer.Transcribe(ctx, recognize.Request{
		WAVPath:      wav,
		ModelPath:    r.opts.ModelPath,
		Threads:      r.opts.Threads,
		OutputPrefix: filepath.Join(outDir, stagingPrefix),
	}); err != nil {
		removeStaging(outDir)
		if !r.opts.KeepAudio {
			_ = os.Remove(wav)
		}
		return r.fail(result, ReasonRecognize, err), false, nil
	}

	if err := placeArtifacts(outDir); err != nil {
		removeStaging(outDir)
		if !r.opts.KeepAudio {
			_ = os.Remove(wav)
		}
		return r.fail(result, ReasonArtifacts, err), false, nil
	}

	if !r.opts.FastScan {
		if err := deriveDocuments(outDir); err != nil {
			return r.fail(result, ReasonArtifacts, err), false, nil
		}
	}

	if err := writeMetadata(outDir, Metadata{
		Source:    source,
		Bucket:    bucket,
		Slug:      slug,
		Engine:    r.opts.EnginePath,
		Model:     r.opts.ModelPath,
		Threads:   r.opts.Threads,
		FastScan:  r.opts.FastScan,
		KeepAudio: r.opts.KeepAudio,
	}); err != nil {
		return r.fail(result, ReasonArtifacts, err), false, nil
	}

	if !r.opts.KeepAudio {
		_ = os.Remove(wav)
	}
	result.Status = StatusOK
	r.logger.Info("transcribed", logging.String("source", source), logging.String("output", outDir))
	return result, false, nil
}

func (r *Runner) fail(result FileResult, reason string, err error) FileResult {
	result.Status = StatusError
	result.Reason = reason
	result.Message = err.Error()
	r.logger.Warn("file failed",
		logging.String("source", result.Source),
		logging.String("reason", reason),
		logging.Error(err))
	return result
}
