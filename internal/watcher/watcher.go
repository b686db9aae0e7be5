// Package watcher starts transcription runs automatically when new media
// lands in watched folders.
//
// Filesystem events are debounced per folder: a folder must stay quiet
// for the settle window before a ticker pass hands it to the controller.
// Folders that turn dirty while a run is active are picked up by a later
// pass.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"lectern/internal/batch"
	"lectern/internal/logging"
	"lectern/internal/runner"
)

const (
	DefaultSettle   = 5 * time.Second
	DefaultInterval = 30 * time.Second
)

// Starter is the controller surface the watcher drives. Implemented by
// runner.Runner.
type Starter interface {
	Status() runner.Status
	Start(req runner.Request) (runner.Status, error)
}

// Options configures a Watcher.
type Options struct {
	// Request is the template for triggered runs. Its InputFolders name
	// the watched roots; each triggered run carries only the folders
	// with settled activity.
	Request runner.Request

	// Settle is how long a folder must stay quiet after its last event
	// before a run may pick it up.
	Settle time.Duration

	// Interval is the cadence of run-trigger checks.
	Interval time.Duration

	Logger *slog.Logger
}

// Watcher debounces filesystem events into run starts.
type Watcher struct {
	starter  Starter
	req      runner.Request
	roots    []string
	settle   time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	dirty   map[string]time.Time
	running bool
	cancel  context.CancelFunc
	fsw     *fsnotify.Watcher
	wg      sync.WaitGroup
}

// New validates the watched roots and builds a stopped watcher.
func New(starter Starter, opts Options) (*Watcher, error) {
	if starter == nil {
		return nil, errors.New("watcher requires a run starter")
	}

	roots := make([]string, 0, len(opts.Request.InputFolders))
	for _, folder := range opts.Request.InputFolders {
		trimmed := strings.TrimSpace(folder)
		if trimmed == "" {
			continue
		}
		abs, err := filepath.Abs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("resolve watch folder %s: %w", trimmed, err)
		}
		roots = append(roots, abs)
	}
	if len(roots) == 0 {
		return nil, errors.New("watcher requires at least one folder")
	}
	sort.Strings(roots)

	settle := opts.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Watcher{
		starter:  starter,
		req:      opts.Request,
		roots:    roots,
		settle:   settle,
		interval: interval,
		logger:   logging.WithComponent(opts.Logger, "watcher"),
		dirty:    make(map[string]time.Time),
	}, nil
}

// Start registers the watched trees and begins the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	for _, root := range w.roots {
		if err := addTree(fsw, root, w.req.NoRecursive); err != nil {
			_ = fsw.Close()
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.fsw = fsw
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx, fsw)

	w.logger.Info("watching for new media",
		logging.Int("folders", len(w.roots)),
		logging.Duration("settle", w.settle),
		logging.Duration("interval", w.interval))
	return nil
}

// Stop ends the event loop and releases the filesystem watches.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	fsw := w.fsw
	w.running = false
	w.cancel = nil
	w.fsw = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if fsw != nil {
		_ = fsw.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		case <-ticker.C:
			w.maybeStart()
		}
	}
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	root := w.rootFor(event.Name)
	if root == "" {
		return
	}
	if event.Op&fsnotify.Create != 0 && !w.req.NoRecursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(fsw, event.Name, false); err != nil {
				w.logger.Warn("watch new directory",
					logging.String("path", event.Name),
					logging.Error(err))
			}
			return
		}
	}
	if !batch.IsMedia(event.Name) {
		return
	}

	w.mu.Lock()
	w.dirty[root] = time.Now()
	w.mu.Unlock()
	w.logger.Debug("media activity",
		logging.String("folder", root),
		logging.String("file", filepath.Base(event.Name)))
}

func (w *Watcher) rootFor(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	for _, root := range w.roots {
		if abs == root || strings.HasPrefix(abs, root+string(os.PathSeparator)) {
			return root
		}
	}
	return ""
}

func (w *Watcher) maybeStart() {
	ready := w.takeSettled()
	if len(ready) == 0 {
		return
	}
	if w.starter.Status().Running {
		w.requeue(ready)
		return
	}

	req := w.req
	req.InputFolders = ready
	status, err := w.starter.Start(req)
	if err != nil {
		if errors.Is(err, runner.ErrRunActive) {
			w.requeue(ready)
			return
		}
		w.logger.Warn("auto-start failed",
			logging.Error(err),
			logging.Any("folders", ready))
		return
	}
	w.logger.Info("watch run started",
		logging.String("run_id", status.RunID),
		logging.Int("folders", len(ready)))
}

// takeSettled removes and returns the folders whose last activity is
// older than the settle window.
func (w *Watcher) takeSettled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := time.Now().Add(-w.settle)
	var ready []string
	for folder, last := range w.dirty {
		if last.After(cutoff) {
			continue
		}
		ready = append(ready, folder)
		delete(w.dirty, folder)
	}
	sort.Strings(ready)
	return ready
}

// requeue restores folders that could not start, already settled, so the
// next pass retries them. Fresh activity overwrites the timestamp.
func (w *Watcher) requeue(folders []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	settled := time.Now().Add(-w.settle)
	for _, folder := range folders {
		if _, exists := w.dirty[folder]; !exists {
			w.dirty[folder] = settled
		}
	}
}

func addTree(fsw *fsnotify.Watcher, root string, noRecursive bool) error {
	if err := fsw.Add(root); err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}
	if noRecursive {
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
