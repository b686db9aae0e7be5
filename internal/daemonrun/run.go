// Package daemonrun wires the daemon process together: logging, the run
// history store, notifications, the run controller, and the IPC server,
// then waits for a signal or a shutdown request.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lectern/internal/config"
	"lectern/internal/daemon"
	"lectern/internal/deps"
	"lectern/internal/ipc"
	"lectern/internal/logging"
	"lectern/internal/notify"
	"lectern/internal/runlog"
	"lectern/internal/runner"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// SocketPath overrides the configured IPC socket location.
	SocketPath string

	// Foreground mirrors log output to stdout in addition to the log
	// file, for running under a supervisor or a terminal.
	Foreground bool
}

// Run starts the lectern daemon runtime loop and blocks until a signal
// arrives or a client requests shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("lectern-%s.log", startID))

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	outputs := []string{logPath}
	if opts.Foreground {
		outputs = append([]string{"stdout"}, outputs...)
	}
	logger, err := logging.New(logging.Options{
		Level:   level,
		Format:  cfg.Logging.Format,
		Outputs: outputs,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update lectern.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "lectern-*.log", Exclude: []string{logPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "lectern.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := runlog.Open(cfg.HistoryPath())
	if err != nil {
		logger.Error("open run history", logging.Error(err))
		return err
	}
	defer store.Close()

	// Runs left open by a crash or hard kill would otherwise show as
	// running forever.
	if n, err := store.MarkInterrupted(signalCtx, "interrupted by daemon restart"); err != nil {
		logger.Warn("mark interrupted runs", logging.Error(err))
	} else if n > 0 {
		logger.Info("closed interrupted runs", logging.Int("count", n))
	}
	if cfg.Runner.HistoryKeep > 0 {
		if _, err := store.Prune(signalCtx, cfg.Runner.HistoryKeep); err != nil {
			logger.Warn("prune run history", logging.Error(err))
		}
	}

	notifier := notify.NewService(cfg.Notify.NtfyTopic, cfg.NotifyTimeout(), logger)

	run := runner.New(runner.Options{
		Logger:           logger,
		Hub:              runner.NewHub(cfg.Runner.EventBuffer),
		History:          store,
		Notifier:         notifier,
		DefaultConverter: cfg.Engines.Converter,
		StopGrace:        cfg.StopGrace(),
		Context:          signalCtx,
	})

	d, err := daemon.New(cfg, store, logger, run, notifier, logPath)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// The lock must be held before the IPC server unlinks the socket
	// path, or a second daemon would tear down the live one's socket.
	if err := d.AcquireLock(); err != nil {
		logger.Error("acquire daemon lock", logging.Error(err))
		return err
	}

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("lectern daemon ready",
		logging.Int("pid", os.Getpid()),
		logging.String("socket", socketPath),
		logging.String("log", logPath),
	)

	select {
	case <-signalCtx.Done():
		logger.Info("lectern daemon shutting down on signal")
	case <-d.ShutdownRequested():
		logger.Info("lectern daemon shutting down on request")
	}
	return nil
}

// ensureCurrentLogPointer keeps log_dir/lectern.log pointing at the
// newest daemon log. Falls back to a hard link on filesystems without
// symlink support.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "lectern.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	converterOK := deps.Probe(deps.KindBinary, cfg.Engines.Converter) == nil
	engineOK := deps.Probe(deps.KindBinary, cfg.Engines.Engine) == nil
	modelOK := deps.Probe(deps.KindFile, cfg.Engines.Model) == nil
	logger.Info("dependency snapshot",
		logging.Bool("converter_available", converterOK),
		logging.String("converter_binary", cfg.Engines.Converter),
		logging.Bool("engine_available", engineOK),
		logging.String("engine_binary", cfg.Engines.Engine),
		logging.Bool("model_present", modelOK),
		logging.String("model_path", cfg.Engines.Model),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notify.NtfyTopic) != ""),
	)
}
