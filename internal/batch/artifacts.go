package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"lectern/internal/textutil"
)

// Canonical artifact names inside each output directory.
const (
	TranscriptName = "transcript.txt"
	SegmentsName   = "segments.json"
	CleanName      = "clean.txt"
	SummaryName    = "summary.txt"
	MetadataName   = "metadata.json"
	AudioName      = "audio.wav"

	// stagingPrefix is the engine output base; placement renames
	// stagingPrefix.txt/.json to the canonical names.
	stagingPrefix = "audio"
)

// Metadata describes one completed transcription.
type Metadata struct {
	Source          string    `json:"source"`
	Bucket          string    `json:"bucket"`
	Slug            string    `json:"slug"`
	Engine          string    `json:"engine"`
	Model           string    `json:"model"`
	Threads         int       `json:"threads"`
	FastScan        bool      `json:"fast_scan"`
	KeepAudio       bool      `json:"keep_audio"`
	TranscriptBytes int64     `json:"transcript_bytes"`
	CompletedAt     time.Time `json:"completed_at"`
}

func stagingText(outDir string) string { return filepath.Join(outDir, stagingPrefix+".txt") }
func stagingJSON(outDir string) string { return filepath.Join(outDir, stagingPrefix+".json") }

// placeArtifacts renames the engine staging outputs to their canonical
// names. On any failure it removes whatever was already placed so the
// directory never holds a partial set.
func placeArtifacts(outDir string) error {
	transcript := filepath.Join(outDir, TranscriptName)
	segments := filepath.Join(outDir, SegmentsName)

	if err := os.Rename(stagingText(outDir), transcript); err != nil {
		return fmt.Errorf("place transcript: %w", err)
	}
	if err := os.Rename(stagingJSON(outDir), segments); err != nil {
		_ = os.Remove(transcript)
		return fmt.Errorf("place segments: %w", err)
	}
	return nil
}

// removeStaging clears engine staging leftovers after a failure.
func removeStaging(outDir string) {
	_ = os.Remove(stagingText(outDir))
	_ = os.Remove(stagingJSON(outDir))
}

// deriveDocuments renders clean.txt and summary.txt from the placed
// transcript. Both writes are atomic so readers never observe partial
// documents.
func deriveDocuments(outDir string) error {
	raw, err := os.ReadFile(filepath.Join(outDir, TranscriptName))
	if err != nil {
		return fmt.Errorf("read transcript: %w", err)
	}
	text := string(raw)

	clean := textutil.Reflow(text, textutil.DefaultReflowWidth)
	if err := renameio.WriteFile(filepath.Join(outDir, CleanName), []byte(clean+"\n"), 0o644); err != nil {
		return fmt.Errorf("write clean document: %w", err)
	}

	summary := textutil.Summarize(text, textutil.DefaultSummaryLimit)
	if err := renameio.WriteFile(filepath.Join(outDir, SummaryName), []byte(summary+"\n"), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// writeMetadata records the completed transcription atomically.
func writeMetadata(outDir string, meta Metadata) error {
	if meta.CompletedAt.IsZero() {
		meta.CompletedAt = time.Now().UTC()
	}
	if info, err := os.Stat(filepath.Join(outDir, TranscriptName)); err == nil {
		meta.TranscriptBytes = info.Size()
	}
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(outDir, MetadataName), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}
