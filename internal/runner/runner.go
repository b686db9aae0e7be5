package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"lectern/internal/deps"
	"lectern/internal/gate"
	"lectern/internal/logging"
	"lectern/internal/progress"
	"lectern/internal/services/convert"
)

// Marker files the controller places under the output folder. The
// executor only ever reads them.
const (
	PauseMarkerName = ".lectern.pause"
	StopMarkerName  = ".lectern.stop"
)

const maxOutputLineBytes = 512 * 1024

// commandContext is swapped in tests.
var commandContext = exec.CommandContext

// RunRecorder persists run history. Implemented by runlog.Store.
type RunRecorder interface {
	RecordStart(id string, startedAt time.Time, folders []string, output string) error
	RecordFinish(id string, finishedAt time.Time, success bool, exitCode int, message string, counts map[string]int) error
}

// Notifier pushes run lifecycle notifications. Implemented by
// notify.Service.
type Notifier interface {
	RunStarted(ctx context.Context, folders int) error
	RunFinished(ctx context.Context, success bool, message string, duration time.Duration, counts map[string]int) error
}

// Status is the controller state snapshot returned to clients.
type Status struct {
	Running       bool           `json:"running"`
	Paused        bool           `json:"paused"`
	StopRequested bool           `json:"stop_requested"`
	RunID         string         `json:"run_id,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	Stage         *StageEvent    `json:"stage,omitempty"`
	Counts        map[string]int `json:"counts,omitempty"`
	Folders       []string       `json:"folders,omitempty"`
	OutputFolder  string         `json:"output_folder,omitempty"`
}

// Options configures a Runner.
type Options struct {
	Logger *slog.Logger
	Hub    *Hub

	// History and Notifier are optional collaborators.
	History  RunRecorder
	Notifier Notifier

	// Executable is the executor binary spawned per folder. Defaults to
	// the controller's own executable.
	Executable string

	// DefaultConverter fills Request.ConverterPath when a client leaves
	// it empty.
	DefaultConverter string

	// StopGrace kills the current executor this long after a stop
	// request. Zero disables the kill and stops stay cooperative.
	StopGrace time.Duration

	// Context bounds all spawned executors. Defaults to Background.
	Context context.Context
}

// Runner supervises at most one transcription run at a time.
type Runner struct {
	logger           *slog.Logger
	hub              *Hub
	history          RunRecorder
	notifier         Notifier
	executable       string
	defaultConverter string
	stopGrace        time.Duration
	ctx              context.Context

	mu            sync.Mutex
	running       bool
	stopRequested bool
	runID         string
	req           Request
	startedAt     time.Time
	stage         StageEvent
	counts        map[string]int
	cmd           *exec.Cmd
	pauseMarker   string
	stopMarker    string
}

// New builds a Runner. A nil hub gets a fresh one with the default
// capacity, and the hub is mirrored into the logger.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	hub := opts.Hub
	if hub == nil {
		hub = NewHub(DefaultHubCapacity)
	}
	hub.AddSink(NewSlogSink(logger))
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return &Runner{
		logger:           logging.WithComponent(logger, "runner"),
		hub:              hub,
		history:          opts.History,
		notifier:         opts.Notifier,
		executable:       opts.Executable,
		defaultConverter: opts.DefaultConverter,
		stopGrace:        opts.StopGrace,
		ctx:              ctx,
	}
}

// Hub exposes the event hub for IPC wiring.
func (r *Runner) Hub() *Hub {
	return r.hub
}

// Status reports the current controller state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

func (r *Runner) statusLocked() Status {
	status := Status{
		Running:       r.running,
		StopRequested: r.stopRequested,
		RunID:         r.runID,
		StartedAt:     r.startedAt,
	}
	if !r.running {
		return status
	}
	status.Paused = gate.Present(r.pauseMarker)
	status.Folders = append([]string(nil), r.req.InputFolders...)
	status.OutputFolder = r.req.OutputFolder
	if r.stage.Index > 0 {
		stage := r.stage
		status.Stage = &stage
	}
	if len(r.counts) > 0 {
		counts := make(map[string]int, len(r.counts))
		for k, v := range r.counts {
			counts[k] = v
		}
		status.Counts = counts
	}
	return status
}

// Events proxies the hub for IPC clients.
func (r *Runner) Events(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	return r.hub.Fetch(ctx, since, limit, wait)
}

// Start validates the request, verifies external dependencies, and
// launches the supervision loop. Failures before the first executor
// spawn are returned synchronously and leave the controller idle.
func (r *Runner) Start(req Request) (Status, error) {
	req = req.normalized()
	if req.ConverterPath == "" {
		req.ConverterPath = r.defaultConverter
	}
	if req.ConverterPath == "" {
		req.ConverterPath = convert.DefaultBinary
	}
	if verr := req.validate(); verr != nil {
		return r.Status(), verr
	}

	executor := req.ExecutorOverride
	if executor == "" {
		executor = r.executable
	}
	if executor == "" {
		path, err := os.Executable()
		if err != nil {
			return r.Status(), fmt.Errorf("resolve executor binary: %w", err)
		}
		executor = path
	}

	r.mu.Lock()
	if r.running {
		status := r.statusLocked()
		r.mu.Unlock()
		return status, ErrRunActive
	}
	runID := uuid.NewString()
	r.running = true
	r.stopRequested = false
	r.runID = runID
	r.req = req
	r.startedAt = time.Now().UTC()
	r.stage = StageEvent{}
	r.counts = make(map[string]int)
	r.pauseMarker = filepath.Join(req.OutputFolder, PauseMarkerName)
	r.stopMarker = filepath.Join(req.OutputFolder, StopMarkerName)
	r.mu.Unlock()

	if err := r.preflight(req); err != nil {
		r.release()
		return r.Status(), err
	}
	if err := os.MkdirAll(req.OutputFolder, 0o755); err != nil {
		r.release()
		return r.Status(), fmt.Errorf("create output folder: %w", err)
	}
	// Stale markers from a previous run must not gate the new one.
	if err := gate.Clear(filepath.Join(req.OutputFolder, PauseMarkerName)); err != nil {
		r.release()
		return r.Status(), fmt.Errorf("clear stale pause marker: %w", err)
	}
	if err := gate.Clear(filepath.Join(req.OutputFolder, StopMarkerName)); err != nil {
		r.release()
		return r.Status(), fmt.Errorf("clear stale stop marker: %w", err)
	}

	if r.history != nil {
		if err := r.history.RecordStart(runID, r.startedTime(), req.InputFolders, req.OutputFolder); err != nil {
			r.logger.Warn("record run start", logging.Error(err))
		}
	}

	r.publishLog(StreamSystem, fmt.Sprintf("run %s started (%d folders)", runID, len(req.InputFolders)))
	r.publishStatus()
	r.logger.Info("run started",
		logging.String("run_id", runID),
		logging.Int("folders", len(req.InputFolders)),
		logging.String("output", req.OutputFolder))

	if r.notifier != nil {
		go func(count int) {
			ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
			defer cancel()
			if err := r.notifier.RunStarted(ctx, count); err != nil {
				r.logger.Warn("run start notification", logging.Error(err))
			}
		}(len(req.InputFolders))
	}

	go r.supervise(executor, req, runID)
	return r.Status(), nil
}

// TogglePause places or clears the pause marker for the active run.
func (r *Runner) TogglePause(paused bool) (Status, error) {
	r.mu.Lock()
	running := r.running
	pauseMarker := r.pauseMarker
	r.mu.Unlock()
	if !running {
		return r.Status(), ErrNoActiveRun
	}
	if paused {
		if err := gate.Place(pauseMarker, gate.PauseNote); err != nil {
			return r.Status(), fmt.Errorf("place pause marker: %w", err)
		}
		r.publishLog(StreamSystem, "pause requested, executor will hold at the next file boundary")
	} else {
		if err := gate.Clear(pauseMarker); err != nil {
			return r.Status(), fmt.Errorf("clear pause marker: %w", err)
		}
		r.publishLog(StreamSystem, "resume requested")
	}
	r.publishStatus()
	return r.Status(), nil
}

// Stop requests a graceful end of the active run. Stopping an idle
// controller is a no-op. The current file is always allowed to finish
// unless a stop grace is configured.
func (r *Runner) Stop() (Status, error) {
	r.mu.Lock()
	if !r.running {
		status := r.statusLocked()
		r.mu.Unlock()
		return status, nil
	}
	r.stopRequested = true
	pauseMarker := r.pauseMarker
	stopMarker := r.stopMarker
	cmd := r.cmd
	r.mu.Unlock()

	if err := gate.Place(stopMarker, gate.StopNote); err != nil {
		return r.Status(), fmt.Errorf("place stop marker: %w", err)
	}
	// A paused executor must wake up to observe the stop.
	if err := gate.Clear(pauseMarker); err != nil {
		r.logger.Warn("clear pause marker on stop", logging.Error(err))
	}
	r.publishLog(StreamSystem, "stop requested, current file will finish")
	r.publishStatus()

	if r.stopGrace > 0 && cmd != nil {
		time.AfterFunc(r.stopGrace, func() { r.killIfStillRunning(cmd) })
	}
	return r.Status(), nil
}

func (r *Runner) killIfStillRunning(cmd *exec.Cmd) {
	r.mu.Lock()
	current := r.cmd
	r.mu.Unlock()
	if current != cmd || cmd.Process == nil {
		return
	}
	r.publishLog(StreamSystem, "stop grace elapsed, killing executor")
	if err := cmd.Process.Kill(); err != nil {
		r.logger.Warn("kill executor", logging.Error(err))
	}
}

// preflight verifies every external dependency before any executor is
// spawned, mirroring each check into the event stream.
func (r *Runner) preflight(req Request) error {
	checks := []deps.Requirement{
		{Name: "converter", Kind: deps.KindBinary, Target: req.ConverterPath, Description: "audio converter"},
		{Name: "engine", Kind: deps.KindBinary, Target: req.EnginePath, Description: "recognition engine"},
		{Name: "model", Kind: deps.KindFile, Target: req.ModelPath, Description: "recognition model"},
	}
	if req.ExecutorOverride != "" {
		checks = append(checks, deps.Requirement{
			Name: "executor", Kind: deps.KindBinary, Target: req.ExecutorOverride, Description: "pipeline executor",
		})
	}
	var failed *deps.Status
	for _, status := range deps.Check(checks) {
		if status.Available {
			r.publishLog(StreamPreflight, fmt.Sprintf("%s ok (%s)", status.Name, status.Target))
			continue
		}
		r.publishLog(StreamPreflight, fmt.Sprintf("%s unavailable: %s", status.Name, status.Detail))
		if failed == nil {
			s := status
			failed = &s
		}
	}
	if failed != nil {
		return &DependencyError{Name: failed.Name, Target: failed.Target, Detail: failed.Detail}
	}
	return nil
}

// release undoes the run reservation after a pre-spawn failure. No
// finish event is published because no run ever started.
func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.stopRequested = false
	r.runID = ""
	r.req = Request{}
	r.startedAt = time.Time{}
	r.stage = StageEvent{}
	r.counts = nil
	r.pauseMarker = ""
	r.stopMarker = ""
	r.mu.Unlock()
}

func (r *Runner) startedTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// supervise walks the input folders sequentially and terminates the run
// with exactly one finish event.
func (r *Runner) supervise(executor string, req Request, runID string) {
	total := len(req.InputFolders)
	success := true
	exitCode := 0
	message := "transcription complete"

	for i, folder := range req.InputFolders {
		if r.stopWasRequested() {
			success = false
			exitCode = 130
			message = "stopped by user before next folder"
			break
		}

		stage := StageEvent{Index: i + 1, Total: total, Folder: folder}
		r.setStage(stage)
		r.hub.Publish(Event{Kind: KindStage, Stage: &stage})

		code, err := r.runFolder(executor, req, folder)
		if err != nil {
			success = false
			exitCode = 1
			message = "failed to launch executor: " + err.Error()
			break
		}
		if code != 0 {
			success = false
			exitCode = code
			if r.stopWasRequested() {
				message = "stopped by user"
			} else {
				message = fmt.Sprintf("folder run failed (exit code %d)", code)
			}
			break
		}
	}

	r.finish(runID, success, exitCode, message)
}

// runFolder spawns one executor process and drains its output. The
// returned error covers launch problems only; a nonzero exit comes back
// as the code.
func (r *Runner) runFolder(executor string, req Request, folder string) (int, error) {
	cmd := commandContext(r.ctx, executor, executorArgs(req, folder)...)
	// Bounds the pipe drain so a stray grandchild holding stdout open
	// cannot wedge the run after the executor itself exits.
	cmd.WaitDelay = 3 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, err
	}
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	r.setCmd(cmd)
	defer r.setCmd(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.pumpStdout(stdout)
	}()
	go func() {
		defer wg.Done()
		r.pumpStderr(stderr)
	}()

	waitErr := cmd.Wait()
	wg.Wait()

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 0, waitErr
	}
	return 0, nil
}

// pumpStdout classifies executor stdout lines into progress and log
// events.
func (r *Runner) pumpStdout(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLineBytes)
	for scanner.Scan() {
		line := scanner.Text()
		if rec, ok := progress.Parse(line); ok {
			r.noteProgress(rec)
			continue
		}
		r.publishLog(StreamStdout, line)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("executor stdout", logging.Error(err))
	}
}

func (r *Runner) pumpStderr(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputLineBytes)
	for scanner.Scan() {
		r.publishLog(StreamStderr, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("executor stderr", logging.Error(err))
	}
}

func (r *Runner) noteProgress(rec progress.Record) {
	r.mu.Lock()
	if r.counts != nil && rec.Status != "" {
		r.counts[rec.Status]++
	}
	r.mu.Unlock()
	evt := ProgressEvent{Done: rec.Done, Total: rec.Total, Status: rec.Status, Source: rec.Source}
	r.hub.Publish(Event{Kind: KindProgress, Progress: &evt})
}

// finish tears down run state and publishes the single finish event.
func (r *Runner) finish(runID string, success bool, exitCode int, message string) {
	r.mu.Lock()
	pauseMarker := r.pauseMarker
	stopMarker := r.stopMarker
	startedAt := r.startedAt
	counts := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		counts[k] = v
	}
	r.running = false
	r.stopRequested = false
	r.runID = ""
	r.req = Request{}
	r.startedAt = time.Time{}
	r.stage = StageEvent{}
	r.counts = nil
	r.cmd = nil
	r.pauseMarker = ""
	r.stopMarker = ""
	r.mu.Unlock()

	if err := gate.Clear(pauseMarker); err != nil {
		r.logger.Warn("clear pause marker", logging.Error(err))
	}
	if err := gate.Clear(stopMarker); err != nil {
		r.logger.Warn("clear stop marker", logging.Error(err))
	}

	finishedAt := time.Now().UTC()
	if r.history != nil {
		if err := r.history.RecordFinish(runID, finishedAt, success, exitCode, message, counts); err != nil {
			r.logger.Warn("record run finish", logging.Error(err))
		}
	}

	finish := FinishEvent{Success: success, ExitCode: exitCode, Message: message}
	r.hub.Publish(Event{Kind: KindFinish, Finish: &finish})
	r.publishStatus()

	if r.notifier != nil {
		duration := finishedAt.Sub(startedAt)
		go func() {
			ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
			defer cancel()
			if err := r.notifier.RunFinished(ctx, success, message, duration, counts); err != nil {
				r.logger.Warn("run finish notification", logging.Error(err))
			}
		}()
	}
}

func (r *Runner) stopWasRequested() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopRequested
}

func (r *Runner) setStage(stage StageEvent) {
	r.mu.Lock()
	r.stage = stage
	r.mu.Unlock()
}

func (r *Runner) setCmd(cmd *exec.Cmd) {
	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()
}

func (r *Runner) publishLog(stream, line string) {
	r.hub.Publish(Event{Kind: KindLog, Log: &LogEvent{Stream: stream, Line: line}})
}

func (r *Runner) publishStatus() {
	status := r.Status()
	r.hub.Publish(Event{Kind: KindStatus, Status: &status})
}

// executorArgs builds the batch subcommand argv for one input folder.
func executorArgs(req Request, folder string) []string {
	args := []string{
		"batch",
		"--input", folder,
		"--output", req.OutputFolder,
		"--engine", req.EnginePath,
		"--model", req.ModelPath,
		"--converter", req.ConverterPath,
		"--threads", strconv.Itoa(req.Threads),
		"--pause-marker", filepath.Join(req.OutputFolder, PauseMarkerName),
		"--stop-marker", filepath.Join(req.OutputFolder, StopMarkerName),
	}
	if req.BeforeDate != "" {
		args = append(args, "--before", req.BeforeDate)
	}
	if req.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(req.Limit))
	}
	if req.FastScan {
		args = append(args, "--fast-scan")
	}
	if req.Force {
		args = append(args, "--force")
	}
	if req.NoRecursive {
		args = append(args, "--no-recursive")
	}
	if req.KeepAudio {
		args = append(args, "--keep-audio")
	}
	return args
}
