package recognize

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestTranscribeValidatesRequest(t *testing.T) {
	cli := NewCLI()
	tests := []struct {
		name string
		req  Request
	}{
		{"missing wav", Request{ModelPath: "/m.bin", OutputPrefix: "/out/audio"}},
		{"missing model", Request{WAVPath: "/a.wav", OutputPrefix: "/out/audio"}},
		{"missing prefix", Request{WAVPath: "/a.wav", ModelPath: "/m.bin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := cli.Transcribe(context.Background(), tt.req); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTranscribeArgumentContract(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "audio")

	var capturedName string
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedName = name
		capturedArgs = append([]string(nil), args...)
		for _, ext := range []string{".txt", ".json"} {
			if err := os.WriteFile(prefix+ext, []byte("x"), 0o644); err != nil {
				t.Fatalf("write fake artifact: %v", err)
			}
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI(WithBinary("/opt/whisper"))
	result, err := cli.Transcribe(context.Background(), Request{
		WAVPath:      "/work/audio.wav",
		ModelPath:    "/models/ggml-base.bin",
		Threads:      6,
		OutputPrefix: prefix,
	})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}

	if capturedName != "/opt/whisper" {
		t.Fatalf("expected configured binary, got %q", capturedName)
	}
	joined := strings.Join(capturedArgs, " ")
	for _, want := range []string{
		"-m /models/ggml-base.bin",
		"-f /work/audio.wav",
		"-t 6",
		"-otxt",
		"-oj",
		"--output-file " + prefix,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, capturedArgs)
		}
	}
	if result.TextPath != prefix+".txt" || result.JSONPath != prefix+".json" {
		t.Fatalf("unexpected result paths %+v", result)
	}
}

func TestTranscribeClampsThreads(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "audio")

	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string(nil), args...)
		for _, ext := range []string{".txt", ".json"} {
			if err := os.WriteFile(prefix+ext, []byte("x"), 0o644); err != nil {
				t.Fatalf("write fake artifact: %v", err)
			}
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	if _, err := cli.Transcribe(context.Background(), Request{
		WAVPath:      "/work/audio.wav",
		ModelPath:    "/models/m.bin",
		Threads:      0,
		OutputPrefix: prefix,
	}); err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}
	if !strings.Contains(strings.Join(capturedArgs, " "), "-t 1") {
		t.Fatalf("expected threads clamped to 1, got %v", capturedArgs)
	}
}

func TestTranscribeRequiresBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "audio")

	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if err := os.WriteFile(prefix+".txt", []byte("text only"), 0o644); err != nil {
			t.Fatalf("write fake artifact: %v", err)
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	_, err := cli.Transcribe(context.Background(), Request{
		WAVPath:      "/work/audio.wav",
		ModelPath:    "/models/m.bin",
		Threads:      2,
		OutputPrefix: prefix,
	})
	if err == nil {
		t.Fatal("expected error when JSON sidecar is missing")
	}
	if !strings.Contains(err.Error(), "timestamp output") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTranscribeSurfacesEngineFailure(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'model load failed' >&2; exit 3")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	_, err := cli.Transcribe(context.Background(), Request{
		WAVPath:      "/work/audio.wav",
		ModelPath:    "/models/m.bin",
		Threads:      2,
		OutputPrefix: "/work/audio",
	})
	if err == nil {
		t.Fatal("expected engine failure to surface")
	}
	if !strings.Contains(err.Error(), "model load failed") {
		t.Fatalf("expected stderr detail, got %v", err)
	}
}
