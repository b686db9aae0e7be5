package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lectern/internal/logging"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanupOldLogsPrunesByAgeAndPattern(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "lectern-old.log")
	recent := filepath.Join(dir, "lectern-new.log")
	other := filepath.Join(dir, "keep.txt")
	writeAged(t, old, 10*24*time.Hour)
	writeAged(t, recent, time.Hour)
	writeAged(t, other, 10*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), 7,
		logging.RetentionTarget{Dir: dir, Pattern: "lectern-*.log"})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expected stale log to be pruned")
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent log should remain: %v", err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("non-matching file should remain: %v", err)
	}
}

func TestCleanupOldLogsHonorsExclusions(t *testing.T) {
	dir := t.TempDir()
	current := filepath.Join(dir, "lectern-current.log")
	writeAged(t, current, 30*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), 7,
		logging.RetentionTarget{Dir: dir, Pattern: "lectern-*.log", Exclude: []string{current}})

	if _, err := os.Stat(current); err != nil {
		t.Fatalf("excluded file should remain: %v", err)
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "lectern-old.log")
	writeAged(t, old, 30*24*time.Hour)

	logging.CleanupOldLogs(logging.NewNop(), 0,
		logging.RetentionTarget{Dir: dir, Pattern: "lectern-*.log"})

	if _, err := os.Stat(old); err != nil {
		t.Fatalf("pruning disabled, file should remain: %v", err)
	}
}
