package runlog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"lectern/internal/runlog"
)

func openStore(t *testing.T) *runlog.Store {
	t.Helper()
	store, err := runlog.Open(filepath.Join(t.TempDir(), "state", "runlog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenCreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runlog.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := reopened.Close(); err != nil {
		t.Fatalf("close reopened: %v", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	started := time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)
	folders := []string{"/media/sunday", "/media/evening"}

	if err := store.RecordStart("run-1", started, folders, "/media/out"); err != nil {
		t.Fatalf("record start: %v", err)
	}

	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Completed {
		t.Fatal("run should still be in flight")
	}
	if len(records[0].Folders) != 2 || records[0].Folders[0] != "/media/sunday" {
		t.Fatalf("unexpected folders %v", records[0].Folders)
	}

	finished := started.Add(42 * time.Minute)
	counts := map[string]int{"ok": 7, "skipped": 2}
	if err := store.RecordFinish("run-1", finished, true, 0, "transcription complete", counts); err != nil {
		t.Fatalf("record finish: %v", err)
	}

	records, err = store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list after finish: %v", err)
	}
	rec := records[0]
	if !rec.Completed || !rec.Success || rec.ExitCode != 0 {
		t.Fatalf("unexpected outcome %+v", rec)
	}
	if rec.Message != "transcription complete" {
		t.Fatalf("unexpected message %q", rec.Message)
	}
	if rec.Counts["ok"] != 7 || rec.Counts["skipped"] != 2 {
		t.Fatalf("unexpected counts %v", rec.Counts)
	}
	if rec.Duration() != 42*time.Minute {
		t.Fatalf("unexpected duration %s", rec.Duration())
	}
}

func TestFinishUnknownRun(t *testing.T) {
	store := openStore(t)
	err := store.RecordFinish("ghost", time.Now(), false, 1, "x", nil)
	if err == nil {
		t.Fatal("expected error finishing unknown run")
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	base := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := store.RecordStart(id, base.Add(time.Duration(i)*time.Hour), []string{"/in"}, "/out"); err != nil {
			t.Fatalf("record start %s: %v", id, err)
		}
	}

	records, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != "c" || records[1].ID != "b" {
		t.Fatalf("unexpected order %s, %s", records[0].ID, records[1].ID)
	}
}

func TestMarkInterrupted(t *testing.T) {
	store := openStore(t)
	base := time.Now().UTC()
	if err := store.RecordStart("done", base, []string{"/in"}, "/out"); err != nil {
		t.Fatalf("record start: %v", err)
	}
	if err := store.RecordFinish("done", base.Add(time.Minute), true, 0, "transcription complete", nil); err != nil {
		t.Fatalf("record finish: %v", err)
	}
	if err := store.RecordStart("stuck", base.Add(2*time.Minute), []string{"/in"}, "/out"); err != nil {
		t.Fatalf("record start: %v", err)
	}

	n, err := store.MarkInterrupted(context.Background(), "interrupted by daemon restart")
	if err != nil {
		t.Fatalf("mark interrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted run, got %d", n)
	}

	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, rec := range records {
		if !rec.Completed {
			t.Fatalf("run %s still open after interrupt sweep", rec.ID)
		}
		if rec.ID == "stuck" {
			if rec.Success || rec.ExitCode != -1 || rec.Message != "interrupted by daemon restart" {
				t.Fatalf("unexpected interrupted record %+v", rec)
			}
		}
		if rec.ID == "done" && !rec.Success {
			t.Fatal("finished run must not be rewritten by the interrupt sweep")
		}
	}
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openStore(t)
	base := time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := store.RecordStart(id, base.Add(time.Duration(i)*time.Hour), []string{"/in"}, "/out"); err != nil {
			t.Fatalf("record start %s: %v", id, err)
		}
	}

	removed, err := store.Prune(context.Background(), 2)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 pruned rows, got %d", removed)
	}
	records, err := store.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].ID != "e" || records[1].ID != "d" {
		t.Fatalf("unexpected survivors %+v", records)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runlog.db")
	store, err := runlog.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.BumpSchemaVersionForTest(99); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	_, err = runlog.Open(path)
	if !errors.Is(err, runlog.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
