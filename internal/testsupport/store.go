package testsupport

import (
	"testing"

	"lectern/internal/config"
	"lectern/internal/runlog"
)

// MustOpenStore opens a runlog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *runlog.Store {
	t.Helper()

	store, err := runlog.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("runlog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
