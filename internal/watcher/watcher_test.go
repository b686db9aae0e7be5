package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lectern/internal/runner"
	"lectern/internal/watcher"
)

type fakeStarter struct {
	mu      sync.Mutex
	running bool
	reqs    []runner.Request
}

func (f *fakeStarter) Status() runner.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return runner.Status{Running: f.running}
}

func (f *fakeStarter) Start(req runner.Request) (runner.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return runner.Status{}, runner.ErrRunActive
	}
	f.reqs = append(f.reqs, req)
	return runner.Status{Running: true, RunID: "watch-test"}, nil
}

func (f *fakeStarter) setRunning(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = v
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeStarter) request(i int) runner.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[i]
}

func (f *fakeStarter) startedFolders() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	folders := make(map[string]bool)
	for _, req := range f.reqs {
		for _, folder := range req.InputFolders {
			folders[folder] = true
		}
	}
	return folders
}

func startWatcher(t *testing.T, starter watcher.Starter, opts watcher.Options) *watcher.Watcher {
	t.Helper()
	if opts.Settle == 0 {
		opts.Settle = 20 * time.Millisecond
	}
	if opts.Interval == 0 {
		opts.Interval = 20 * time.Millisecond
	}
	w, err := watcher.New(starter, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func writeMedia(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatcherStartsRunAfterSettle(t *testing.T) {
	root := t.TempDir()
	output := t.TempDir()
	fake := &fakeStarter{}
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{
			InputFolders: []string{root},
			OutputFolder: output,
		},
	})

	writeMedia(t, filepath.Join(root, "talk.mp3"))

	waitFor(t, "run start", func() bool { return fake.count() == 1 })
	req := fake.request(0)
	if len(req.InputFolders) != 1 || req.InputFolders[0] != root {
		t.Fatalf("unexpected folders: %v", req.InputFolders)
	}
	if req.OutputFolder != output {
		t.Fatalf("output folder not carried: %q", req.OutputFolder)
	}
}

func TestWatcherIgnoresNonMediaFiles(t *testing.T) {
	root := t.TempDir()
	fake := &fakeStarter{}
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{InputFolders: []string{root}},
	})

	writeMedia(t, filepath.Join(root, "notes.txt"))

	time.Sleep(150 * time.Millisecond)
	if got := fake.count(); got != 0 {
		t.Fatalf("expected no runs, got %d", got)
	}
}

func TestWatcherDefersWhileRunActive(t *testing.T) {
	root := t.TempDir()
	fake := &fakeStarter{}
	fake.setRunning(true)
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{InputFolders: []string{root}},
	})

	writeMedia(t, filepath.Join(root, "lecture.m4a"))

	time.Sleep(150 * time.Millisecond)
	if got := fake.count(); got != 0 {
		t.Fatalf("started while controller busy: %d runs", got)
	}

	fake.setRunning(false)
	waitFor(t, "deferred start", func() bool { return fake.count() == 1 })
}

func TestWatcherFollowsCreatedSubdirectories(t *testing.T) {
	root := t.TempDir()
	fake := &fakeStarter{}
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{InputFolders: []string{root}},
	})

	sub := filepath.Join(root, "2024-05-10")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// Give the event loop a chance to register the new directory.
	time.Sleep(100 * time.Millisecond)
	writeMedia(t, filepath.Join(sub, "seminar.wav"))

	waitFor(t, "subdirectory start", func() bool { return fake.count() >= 1 })
	if folders := fake.request(0).InputFolders; len(folders) != 1 || folders[0] != root {
		t.Fatalf("expected run on watched root, got %v", folders)
	}
}

func TestWatcherSkipsSubdirectoriesWhenNotRecursive(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fake := &fakeStarter{}
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{
			InputFolders: []string{root},
			NoRecursive:  true,
		},
	})

	writeMedia(t, filepath.Join(sub, "clip.flac"))
	time.Sleep(150 * time.Millisecond)
	if got := fake.count(); got != 0 {
		t.Fatalf("nested file triggered a run: %d", got)
	}

	writeMedia(t, filepath.Join(root, "clip.flac"))
	waitFor(t, "root start", func() bool { return fake.count() == 1 })
}

func TestWatcherBatchesDirtyFolders(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	fake := &fakeStarter{}
	startWatcher(t, fake, watcher.Options{
		Request: runner.Request{InputFolders: []string{first, second}},
	})

	writeMedia(t, filepath.Join(first, "a.mp3"))
	writeMedia(t, filepath.Join(second, "b.mp3"))

	waitFor(t, "both folders", func() bool {
		started := fake.startedFolders()
		return started[first] && started[second]
	})
}

func TestWatcherRequiresFolders(t *testing.T) {
	if _, err := watcher.New(&fakeStarter{}, watcher.Options{}); err == nil {
		t.Fatal("expected error for empty folder list")
	}
	if _, err := watcher.New(nil, watcher.Options{
		Request: runner.Request{InputFolders: []string{t.TempDir()}},
	}); err == nil {
		t.Fatal("expected error for nil starter")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	fake := &fakeStarter{}
	w := startWatcher(t, fake, watcher.Options{
		Request: runner.Request{InputFolders: []string{root}},
	})

	w.Stop()
	w.Stop()

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	w.Stop()
}
