package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckMixedRequirements(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	model := filepath.Join(binDir, "model.bin")
	if err := os.WriteFile(model, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}

	reqs := []Requirement{
		{Name: "Converter", Kind: KindBinary, Target: present},
		{Name: "Engine", Kind: KindBinary, Target: "clearly-not-present-binary"},
		{Name: "Model", Kind: KindFile, Target: model},
		{Name: "Output", Kind: KindDir, Target: binDir},
	}

	results := Check(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected stub binary to be available, got %#v", results[0])
	}
	if results[1].Available {
		t.Fatal("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatal("expected detail message for missing binary")
	}
	if !results[2].Available {
		t.Fatalf("expected model file to be available, got %#v", results[2])
	}
	if !results[3].Available {
		t.Fatalf("expected temp dir to be accessible, got %#v", results[3])
	}
}

func TestCheckUnconfiguredTarget(t *testing.T) {
	results := Check([]Requirement{{Name: "Engine", Kind: KindBinary, Target: "  "}})
	if results[0].Available {
		t.Fatal("blank target should be unavailable")
	}
	if results[0].Detail != "not configured" {
		t.Fatalf("unexpected detail %q", results[0].Detail)
	}
}

func TestProbeFileRejectsDirectory(t *testing.T) {
	if err := Probe(KindFile, t.TempDir()); err == nil {
		t.Fatal("expected error when file target is a directory")
	}
}

func TestProbeDirRejectsMissing(t *testing.T) {
	if err := Probe(KindDir, filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestProbeDirRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := Probe(KindDir, path); err == nil {
		t.Fatal("expected error when directory target is a file")
	}
}
