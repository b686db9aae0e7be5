package convert

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func TestNewCLIWithBinary(t *testing.T) {
	cli := NewCLI(WithBinary("/opt/ffmpeg"))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
}

func TestExtractRequiresSource(t *testing.T) {
	cli := NewCLI()
	if err := cli.Extract(context.Background(), "", "/tmp/out.wav"); err == nil {
		t.Fatal("expected error when source is empty")
	}
}

func TestExtractRequiresDest(t *testing.T) {
	cli := NewCLI()
	if err := cli.Extract(context.Background(), "/media/talk.mp3", ""); err == nil {
		t.Fatal("expected error when destination is empty")
	}
}

func TestExtractArgumentContract(t *testing.T) {
	var capturedName string
	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedName = name
		capturedArgs = append([]string(nil), args...)
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI(WithBinary("ffmpeg-custom"))
	if err := cli.Extract(context.Background(), "/in/sermon.mp4", "/out/audio.wav"); err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if capturedName != "ffmpeg-custom" {
		t.Fatalf("expected configured binary, got %q", capturedName)
	}
	joined := strings.Join(capturedArgs, " ")
	for _, want := range []string{
		"-i /in/sermon.mp4",
		"-vn",
		"-ar 16000",
		"-ac 1",
		"-c:a pcm_s16le",
		"-y /out/audio.wav",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected args to contain %q, got %v", want, capturedArgs)
		}
	}
}

func TestExtractWrapsFailureOutput(t *testing.T) {
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'decode error' >&2; exit 1")
	}
	t.Cleanup(func() { commandContext = original })

	cli := NewCLI()
	err := cli.Extract(context.Background(), "/in/bad.mp3", "/out/audio.wav")
	if err == nil {
		t.Fatal("expected failure to surface")
	}
	if !strings.Contains(err.Error(), "decode error") {
		t.Fatalf("expected stderr detail in error, got %v", err)
	}
}
