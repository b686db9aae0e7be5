package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lectern/internal/config"
	"lectern/internal/daemon"
	"lectern/internal/ipc"
	"lectern/internal/logging"
	"lectern/internal/runlog"
	"lectern/internal/runner"
	"lectern/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *runlog.Store
	runner     *runner.Runner
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	executor   string
	logPath    string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	cfg := testsupport.NewConfig(t,
		testsupport.WithStubbedBinaries(),
		testsupport.WithModelFile(),
	)
	cfg.Output.DefaultOutput = filepath.Join(testsupport.BaseDir(cfg), "transcripts")

	logPath := filepath.Join(cfg.Paths.LogDir, "lectern-test.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	configPath := filepath.Join(homeDir, ".config", "lectern", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	// The default executor stands in for the real pipeline so runs started
	// without an explicit override cannot re-invoke the test binary. It
	// stays alive briefly so start responses observe a running controller.
	executor := filepath.Join(testsupport.BaseDir(cfg), "bin", "fake-executor")
	writeStubExecutor(t, executor, "sleep 0.2\nexit 0")

	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	ctx, cancel := context.WithCancel(context.Background())
	run := runner.New(runner.Options{
		Logger:           logger,
		Hub:              runner.NewHub(256),
		History:          store,
		Executable:       executor,
		DefaultConverter: cfg.Engines.Converter,
		StopGrace:        200 * time.Millisecond,
		Context:          ctx,
	})

	d, err := daemon.New(cfg, store, logger, run, nil, logPath)
	if err != nil {
		cancel()
		t.Fatalf("daemon.New: %v", err)
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		runner:     run,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		executor:   executor,
		logPath:    logPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q
state_dir = %q
socket = %q

[engines]
converter = %q
engine = %q
model = %q
threads = %d

[output]
default_output = %q
`,
		cfg.Paths.LogDir,
		cfg.Paths.StateDir,
		cfg.Paths.Socket,
		cfg.Engines.Converter,
		cfg.Engines.Engine,
		cfg.Engines.Model,
		cfg.Engines.Threads,
		cfg.Output.DefaultOutput,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// writeStubExecutor writes a shell script used in place of the real
// pipeline executor.
func writeStubExecutor(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir executor dir: %v", err)
	}
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub executor: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
