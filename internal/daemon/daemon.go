package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"lectern/internal/config"
	"lectern/internal/logging"
	"lectern/internal/notify"
	"lectern/internal/runlog"
	"lectern/internal/runner"
)

// Daemon owns the run controller and its collaborators for one daemon
// process and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *runlog.Store
	runner   *runner.Runner
	notifier notify.Service
	logPath  string

	lockPath string
	lock     *flock.Flock

	startedAt time.Time

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Status describes the daemon process and its controller.
type Status struct {
	PID         int
	StartedAt   time.Time
	LogPath     string
	HistoryPath string
	LockPath    string
	SocketPath  string
	Run         runner.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runlog.Store, logger *slog.Logger, run *runner.Runner, notifier notify.Service, logPath string) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || run == nil {
		return nil, errors.New("daemon requires config, store, logger, and runner")
	}
	if notifier == nil {
		notifier = notify.NewService("", 0, logger)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "lectern.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.WithComponent(logger, "daemon"),
		store:      store,
		runner:     run,
		notifier:   notifier,
		logPath:    logPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		startedAt:  time.Now().UTC(),
		shutdownCh: make(chan struct{}),
	}, nil
}

// AcquireLock claims the single-instance lock file. It must succeed
// before the IPC socket is opened so a second daemon cannot tear down a
// live one's socket.
func (d *Daemon) AcquireLock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("another lectern daemon already holds %s", d.lockPath)
	}
	return nil
}

// Close releases the daemon lock and the run history store.
func (d *Daemon) Close() error {
	if err := d.lock.Unlock(); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// StartRun fills request gaps from configuration and hands the request
// to the controller.
func (d *Daemon) StartRun(req runner.Request) (runner.Status, error) {
	return d.runner.Start(d.applyDefaults(req))
}

func (d *Daemon) applyDefaults(req runner.Request) runner.Request {
	if strings.TrimSpace(req.OutputFolder) == "" {
		req.OutputFolder = d.cfg.Output.DefaultOutput
	}
	if strings.TrimSpace(req.ConverterPath) == "" {
		req.ConverterPath = d.cfg.Engines.Converter
	}
	if strings.TrimSpace(req.EnginePath) == "" {
		req.EnginePath = d.cfg.Engines.Engine
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		req.ModelPath = d.cfg.Engines.Model
	}
	if req.Threads <= 0 {
		req.Threads = d.cfg.Engines.Threads
	}
	if d.cfg.Output.FastScan {
		req.FastScan = true
	}
	if d.cfg.Output.KeepAudio {
		req.KeepAudio = true
	}
	return req
}

// TogglePause pauses or resumes the active run.
func (d *Daemon) TogglePause(paused bool) (runner.Status, error) {
	return d.runner.TogglePause(paused)
}

// StopRun requests a cooperative stop of the active run.
func (d *Daemon) StopRun() (runner.Status, error) {
	return d.runner.Stop()
}

// RunStatus reports the controller state.
func (d *Daemon) RunStatus() runner.Status {
	return d.runner.Status()
}

// Events returns buffered run events after the given sequence.
func (d *Daemon) Events(ctx context.Context, since uint64, limit int, wait bool) ([]runner.Event, uint64, error) {
	return d.runner.Events(ctx, since, limit, wait)
}

// History lists recent runs, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]runlog.Record, error) {
	if d.store == nil {
		return nil, errors.New("run history unavailable")
	}
	return d.store.List(ctx, limit)
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if !d.notifier.Enabled() {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Test(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		PID:         os.Getpid(),
		StartedAt:   d.startedAt,
		LogPath:     d.logPath,
		HistoryPath: d.store.Path(),
		LockPath:    d.lockPath,
		SocketPath:  d.cfg.SocketPath(),
		Run:         d.runner.Status(),
	}
}

// RequestShutdown asks the daemon process to exit. An active run blocks
// shutdown unless force is set.
func (d *Daemon) RequestShutdown(force bool) (bool, string) {
	if d.runner.Status().Running && !force {
		return false, "a transcription run is active; stop it first or use --force"
	}
	d.shutdownOnce.Do(func() {
		close(d.shutdownCh)
	})
	return true, "shutting down"
}

// ShutdownRequested is closed once an IPC shutdown has been accepted.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}
