package daemon

import (
	"testing"

	"lectern/internal/config"
	"lectern/internal/runner"
)

func TestApplyDefaultsFillsGaps(t *testing.T) {
	cfg := config.Default()
	cfg.Output.DefaultOutput = "/srv/transcripts"
	cfg.Output.FastScan = true
	cfg.Engines.Model = "/models/ggml-base.bin"
	d := &Daemon{cfg: &cfg}

	got := d.applyDefaults(runner.Request{InputFolders: []string{"/rec"}})
	if got.OutputFolder != "/srv/transcripts" {
		t.Fatalf("output folder = %s", got.OutputFolder)
	}
	if got.ConverterPath != cfg.Engines.Converter {
		t.Fatalf("converter = %s", got.ConverterPath)
	}
	if got.EnginePath != cfg.Engines.Engine {
		t.Fatalf("engine = %s", got.EnginePath)
	}
	if got.ModelPath != "/models/ggml-base.bin" {
		t.Fatalf("model = %s", got.ModelPath)
	}
	if got.Threads != cfg.Engines.Threads {
		t.Fatalf("threads = %d", got.Threads)
	}
	if !got.FastScan {
		t.Fatal("expected fast scan default to apply")
	}
	if got.KeepAudio {
		t.Fatal("keep audio should stay off")
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := config.Default()
	cfg.Output.DefaultOutput = "/srv/transcripts"
	d := &Daemon{cfg: &cfg}

	req := runner.Request{
		InputFolders:  []string{"/rec"},
		OutputFolder:  "/out",
		ConverterPath: "/opt/ffmpeg",
		EnginePath:    "/opt/whisper-cli",
		ModelPath:     "/opt/model.bin",
		Threads:       9,
	}
	got := d.applyDefaults(req)
	if got.OutputFolder != "/out" || got.ConverterPath != "/opt/ffmpeg" ||
		got.EnginePath != "/opt/whisper-cli" || got.ModelPath != "/opt/model.bin" ||
		got.Threads != 9 {
		t.Fatalf("explicit request fields were overwritten: %+v", got)
	}
}
