// Package convert wraps the external media converter that turns source
// recordings into the mono 16 kHz WAV the recognition engine consumes.
//
// It exposes a Converter interface and a CLI implementation shelling out to
// ffmpeg. Tests can swap the command constructor to avoid executing the
// real binary while still checking argument contracts.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var commandContext = exec.CommandContext

// DefaultBinary is the converter used when none is configured.
const DefaultBinary = "ffmpeg"

// Converter produces recognition-ready audio from arbitrary media.
type Converter interface {
	Extract(ctx context.Context, source, dest string) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// CLI wraps the ffmpeg command line.
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

// Binary reports the resolved converter binary for dependency checks.
func (c *CLI) Binary() string {
	return c.binary
}

// Extract decodes source into a mono 16 kHz pcm_s16le WAV at dest,
// overwriting any existing file.
func (c *CLI) Extract(ctx context.Context, source, dest string) error {
	if strings.TrimSpace(source) == "" {
		return errors.New("source path required")
	}
	if strings.TrimSpace(dest) == "" {
		return errors.New("destination path required")
	}

	cmd := commandContext(ctx, c.binary, extractArgs(source, dest)...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		detail := strings.TrimSpace(string(output))
		if detail != "" {
			return fmt.Errorf("%s: %w: %s", c.binary, err, detail)
		}
		return fmt.Errorf("%s: %w", c.binary, err)
	}
	return nil
}

func extractArgs(source, dest string) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-threads", "0",
		"-y",
		dest,
	}
}

var _ Converter = (*CLI)(nil)
