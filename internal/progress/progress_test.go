package progress_test

import (
	"strings"
	"testing"

	"lectern/internal/progress"
)

func TestFormatRoundTrip(t *testing.T) {
	rec := progress.Record{Done: 3, Total: 12, Status: "ok", Source: "/media/talks/2024-03-01 morning.mp3"}
	line := progress.Format(rec)
	if !strings.HasPrefix(line, "[progress] ") {
		t.Fatalf("missing prefix: %q", line)
	}
	got, ok := progress.Parse(line)
	if !ok {
		t.Fatalf("Parse rejected %q", line)
	}
	if got != rec {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, rec)
	}
}

func TestParseKeepsSpacesInSource(t *testing.T) {
	line := "[progress] done=1 total=2 status=skipped source=/in/Sunday Sermon 2024_05_12.m4a"
	rec, ok := progress.Parse(line)
	if !ok {
		t.Fatalf("Parse rejected %q", line)
	}
	if rec.Source != "/in/Sunday Sermon 2024_05_12.m4a" {
		t.Fatalf("source = %q", rec.Source)
	}
	if rec.Done != 1 || rec.Total != 2 || rec.Status != "skipped" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestParseIgnoresUnknownKeys(t *testing.T) {
	line := "[progress] done=5 total=9 elapsed=12s status=error source=/in/a.wav"
	rec, ok := progress.Parse(line)
	if !ok {
		t.Fatalf("Parse rejected %q", line)
	}
	if rec.Done != 5 || rec.Total != 9 || rec.Status != "error" || rec.Source != "/in/a.wav" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestParseRejectsOrdinaryLines(t *testing.T) {
	for _, line := range []string{
		"",
		"found 4 candidate files",
		"progress done=1 total=2",
		"[progress]done=1 total=2",
	} {
		if _, ok := progress.Parse(line); ok {
			t.Fatalf("Parse accepted %q", line)
		}
	}
}

func TestParseMinimalLine(t *testing.T) {
	rec, ok := progress.Parse("[progress] done=2 total=2")
	if !ok {
		t.Fatal("Parse rejected minimal line")
	}
	if rec.Status != "" || rec.Source != "" {
		t.Fatalf("optional fields should stay empty, got %+v", rec)
	}
	if rec.Done != 2 || rec.Total != 2 {
		t.Fatalf("unexpected counts %+v", rec)
	}
}

func TestFormatOmitsEmptyFields(t *testing.T) {
	line := progress.Format(progress.Record{Done: 0, Total: 0})
	if line != "[progress] done=0 total=0" {
		t.Fatalf("unexpected line %q", line)
	}
}
