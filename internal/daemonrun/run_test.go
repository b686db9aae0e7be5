package daemonrun

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestEnsureCurrentLogPointer(t *testing.T) {
	logDir := t.TempDir()
	first := filepath.Join(logDir, "lectern-first.log")
	if err := os.WriteFile(first, []byte("one\n"), 0o644); err != nil {
		t.Fatalf("write first log: %v", err)
	}

	if err := ensureCurrentLogPointer(logDir, first); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}
	pointer := filepath.Join(logDir, "lectern.log")
	content, err := os.ReadFile(pointer)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(content) != "one\n" {
		t.Fatalf("pointer content = %q, want %q", content, "one\n")
	}

	second := filepath.Join(logDir, "lectern-second.log")
	if err := os.WriteFile(second, []byte("two\n"), 0o644); err != nil {
		t.Fatalf("write second log: %v", err)
	}
	if err := ensureCurrentLogPointer(logDir, second); err != nil {
		t.Fatalf("repoint: %v", err)
	}
	content, err = os.ReadFile(pointer)
	if err != nil {
		t.Fatalf("read repointed: %v", err)
	}
	if string(content) != "two\n" {
		t.Fatalf("pointer content after repoint = %q, want %q", content, "two\n")
	}
}

func TestEnsureCurrentLogPointerEmptyArgs(t *testing.T) {
	if err := ensureCurrentLogPointer("", "/tmp/whatever.log"); err != nil {
		t.Fatalf("empty dir: %v", err)
	}
	if err := ensureCurrentLogPointer(t.TempDir(), ""); err != nil {
		t.Fatalf("empty target: %v", err)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lectern.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		t.Fatalf("parse pid %q: %v", content, err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}
}

func TestWritePIDFileEmptyPath(t *testing.T) {
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op: %v", err)
	}
}
