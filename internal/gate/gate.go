// Package gate implements the marker-file checkpoints the batch executor
// honors between files and pipeline stages. The run controller owns the
// marker lifecycle; the executor only observes.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"lectern/internal/logging"
)

// Marker contents are informational; only existence is ever tested.
const (
	PauseNote = "paused\n"
	StopNote  = "stop\n"
)

// DefaultPoll is the marker re-check interval while paused.
const DefaultPoll = 500 * time.Millisecond

// Place writes a marker file with the given note.
func Place(path, note string) error {
	if err := os.WriteFile(path, []byte(note), 0o644); err != nil {
		return fmt.Errorf("place marker %s: %w", path, err)
	}
	return nil
}

// Clear removes a marker file. A missing marker is not an error.
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear marker %s: %w", path, err)
	}
	return nil
}

// Present reports whether a marker file exists.
func Present(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Gate polls the pause and stop markers at safe points in the pipeline.
type Gate struct {
	pauseMarker string
	stopMarker  string
	poll        time.Duration
	logger      *slog.Logger
}

// New builds a gate over the two marker paths. A non-positive poll falls
// back to DefaultPoll; a nil logger is replaced with a no-op.
func New(pauseMarker, stopMarker string, poll time.Duration, logger *slog.Logger) *Gate {
	if poll <= 0 {
		poll = DefaultPoll
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{pauseMarker: pauseMarker, stopMarker: stopMarker, poll: poll, logger: logger}
}

// Stopped reports whether the stop marker is present. It never blocks.
func (g *Gate) Stopped() bool {
	return Present(g.stopMarker)
}

// Wait blocks while the pause marker exists. It returns stopped=true when
// the stop marker appears (before or during a pause), and the context
// error when ctx ends first. Each pause episode logs exactly one paused
// and one resumed notice.
func (g *Gate) Wait(ctx context.Context) (bool, error) {
	if g.Stopped() {
		return true, nil
	}
	if !Present(g.pauseMarker) {
		return false, nil
	}

	g.logger.Info("paused, waiting for resume", logging.String("marker", g.pauseMarker))
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			if g.Stopped() {
				g.logger.Info("stop requested while paused")
				return true, nil
			}
			if !Present(g.pauseMarker) {
				g.logger.Info("resumed")
				return false, nil
			}
		}
	}
}
