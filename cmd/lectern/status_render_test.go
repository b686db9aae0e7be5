package main

import (
	"strings"
	"testing"
	"time"

	"lectern/internal/runner"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("State", statusOK, "running (pid 42)", false)
	if !strings.HasPrefix(line, "  State:") {
		t.Fatalf("unexpected prefix: %q", line)
	}
	requireContains(t, line, "[OK] running (pid 42)")

	colored := renderStatusLine("State", statusError, "boom", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected ANSI wrapping, got %q", colored)
	}

	bare := renderStatusLine("Socket", statusInfo, "", false)
	requireContains(t, bare, "[INFO]")
	if strings.Contains(bare, "[INFO] ") {
		t.Fatalf("expected no trailing message, got %q", bare)
	}
}

func TestRenderSectionHeader(t *testing.T) {
	lines := renderSectionHeader("Daemon", false)
	if len(lines) != 2 {
		t.Fatalf("expected title and rule, got %d lines", len(lines))
	}
	if lines[0] != "== Daemon ==" {
		t.Fatalf("unexpected title %q", lines[0])
	}
	if len(lines[1]) != len(lines[0]) {
		t.Fatalf("rule length %d does not match title length %d", len(lines[1]), len(lines[0]))
	}
}

func TestRenderEvent(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	log := runner.Event{
		Kind:      runner.KindLog,
		Timestamp: ts,
		Log:       &runner.LogEvent{Stream: runner.StreamStderr, Line: "whisper warning: low confidence"},
	}
	requireContains(t, renderEvent(log), "stderr")
	requireContains(t, renderEvent(log), "whisper warning: low confidence")

	progress := runner.Event{
		Kind:      runner.KindProgress,
		Timestamp: ts,
		Progress:  &runner.ProgressEvent{Done: 1, Total: 3, Status: "ok", Source: "/rec/a.mp3"},
	}
	requireContains(t, renderEvent(progress), "progress 1/3 ok  /rec/a.mp3")

	stage := runner.Event{
		Kind:      runner.KindStage,
		Timestamp: ts,
		Stage:     &runner.StageEvent{Index: 2, Total: 4, Folder: "/rec"},
	}
	requireContains(t, renderEvent(stage), "folder 2/4: /rec")

	finish := runner.Event{
		Kind:      runner.KindFinish,
		Timestamp: ts,
		Finish:    &runner.FinishEvent{Success: false, Message: "stopped by user"},
	}
	requireContains(t, renderEvent(finish), "run failed: stopped by user")

	status := runner.Event{Kind: runner.KindStatus, Timestamp: ts, Status: &runner.Status{}}
	if got := renderEvent(status); got != "" {
		t.Fatalf("expected status events to render empty, got %q", got)
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	out := renderTable(
		[]string{"Run", "Files"},
		[][]string{{"abc123", "14"}, {"def456"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	requireContains(t, out, "Run")
	requireContains(t, out, "abc123")
	requireContains(t, out, "14")
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty render for no headers")
	}
}
