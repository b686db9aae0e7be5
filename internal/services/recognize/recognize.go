// Package recognize wraps the speech recognition engine (a whisper.cpp
// style command line) that turns WAV audio into transcript text plus a
// timestamped JSON sidecar.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// DefaultBinary is used when no engine path is configured.
const DefaultBinary = "whisper-cli"

// Request names the inputs of one transcription.
type Request struct {
	WAVPath      string
	ModelPath    string
	Threads      int
	OutputPrefix string
}

// Result reports where the engine wrote its artifacts.
type Result struct {
	TextPath string
	JSONPath string
}

// Recognizer runs speech recognition over prepared audio.
type Recognizer interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default engine binary.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the engine command line.
type CLI struct {
	binary string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: DefaultBinary}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary reports the resolved engine binary for dependency checks.
func (c *CLI) Binary() string {
	return c.binary
}

// Transcribe invokes the engine and verifies both output artifacts exist.
// The engine writes OutputPrefix.txt and OutputPrefix.json.
func (c *CLI) Transcribe(ctx context.Context, req Request) (Result, error) {
	var result Result
	if strings.TrimSpace(req.WAVPath) == "" {
		return result, errors.New("wav path required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return result, errors.New("model path required")
	}
	if strings.TrimSpace(req.OutputPrefix) == "" {
		return result, errors.New("output prefix required")
	}
	threads := req.Threads
	if threads < 1 {
		threads = 1
	}

	args := transcribeArgs(req.ModelPath, req.WAVPath, threads, req.OutputPrefix)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return result, fmt.Errorf("%s: %w: %s", c.binary, err, detail)
		}
		return result, fmt.Errorf("%s: %w", c.binary, err)
	}

	result.TextPath = req.OutputPrefix + ".txt"
	result.JSONPath = req.OutputPrefix + ".json"
	if _, err := os.Stat(result.TextPath); err != nil {
		return Result{}, fmt.Errorf("engine produced no text output at %s: %w", result.TextPath, err)
	}
	if _, err := os.Stat(result.JSONPath); err != nil {
		return Result{}, fmt.Errorf("engine produced no timestamp output at %s: %w", result.JSONPath, err)
	}
	return result, nil
}

func transcribeArgs(model, wav string, threads int, prefix string) []string {
	return []string{
		"-m", model,
		"-f", wav,
		"-t", strconv.Itoa(threads),
		"-otxt",
		"-oj",
		"--output-file", prefix,
	}
}

var _ Recognizer = (*CLI)(nil)
