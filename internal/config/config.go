package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
	Socket   string `toml:"socket"`
}

// Engines contains the external tool configuration for transcription.
type Engines struct {
	Converter string `toml:"converter"`
	Engine    string `toml:"engine"`
	Model     string `toml:"model"`
	Threads   int    `toml:"threads"`
}

// Runner contains run controller tuning.
type Runner struct {
	// StopGraceSeconds kills the executor this long after a stop request.
	// Zero keeps stops fully cooperative.
	StopGraceSeconds int `toml:"stop_grace_seconds"`
	EventBuffer      int `toml:"event_buffer"`
	HistoryKeep      int `toml:"history_keep"`
}

// Output contains defaults applied to run requests.
type Output struct {
	DefaultOutput string `toml:"default_output"`
	FastScan      bool   `toml:"fast_scan"`
	KeepAudio     bool   `toml:"keep_audio"`
}

// Watch contains folder watch mode settings.
type Watch struct {
	SettleSeconds   int `toml:"settle_seconds"`
	IntervalSeconds int `toml:"interval_seconds"`
}

// Notify contains ntfy push notification settings.
type Notify struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Lectern.
//
// Configuration sections by subsystem:
//   - Paths: log, state, and socket locations
//   - Engines: converter/recognizer binaries, model, thread count
//   - Runner: controller event buffer, history retention, stop grace
//   - Output: per-request defaults (output root, fast scan, keep audio)
//   - Watch: watch mode settle and rescan intervals
//   - Notify: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Engines Engines `toml:"engines"`
	Runner  Runner  `toml:"runner"`
	Output  Output  `toml:"output"`
	Watch   Watch   `toml:"watch"`
	Notify  Notify  `toml:"notify"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lectern/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lectern.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.StateDir}
	if socket := strings.TrimSpace(c.Paths.Socket); socket != "" {
		dirs = append(dirs, filepath.Dir(socket))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return c.Paths.Socket
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "runlog.db")
}

// StopGrace returns the configured stop grace as a duration.
func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.Runner.StopGraceSeconds) * time.Second
}

// WatchSettle returns how long a folder must stay quiet before a watch
// triggers a run.
func (c *Config) WatchSettle() time.Duration {
	return time.Duration(c.Watch.SettleSeconds) * time.Second
}

// WatchInterval returns the periodic rescan interval for watch mode.
func (c *Config) WatchInterval() time.Duration {
	return time.Duration(c.Watch.IntervalSeconds) * time.Second
}

// NotifyTimeout returns the notification request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notify.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other
// packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified
// location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
