package runner

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Request describes one transcription run over a set of input folders.
type Request struct {
	InputFolders  []string `json:"input_folders"`
	OutputFolder  string   `json:"output_folder"`
	EnginePath    string   `json:"engine_path"`
	ModelPath     string   `json:"model_path"`
	ConverterPath string   `json:"converter_path,omitempty"`
	Threads       int      `json:"threads"`
	BeforeDate    string   `json:"before_date,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	FastScan      bool     `json:"fast_scan,omitempty"`
	Force         bool     `json:"force,omitempty"`
	NoRecursive   bool     `json:"no_recursive,omitempty"`
	KeepAudio     bool     `json:"keep_audio,omitempty"`

	// ExecutorOverride points the controller at an alternative executor
	// binary instead of re-invoking its own executable.
	ExecutorOverride string `json:"executor_override,omitempty"`
}

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// DependencyError reports a missing or unusable external tool or file.
type DependencyError struct {
	Name   string
	Target string
	Detail string
}

func (e *DependencyError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("dependency %s unavailable: %s", e.Name, e.Detail)
	}
	return fmt.Sprintf("dependency %s unavailable (%s): %s", e.Name, e.Target, e.Detail)
}

var (
	// ErrRunActive is returned by Start while another run is in flight.
	ErrRunActive = errors.New("a transcription run is already in progress")
	// ErrNoActiveRun is returned by pause and resume when the controller
	// is idle.
	ErrNoActiveRun = errors.New("no transcription run is active")
)

// normalized trims whitespace and drops empty folder entries.
func (r Request) normalized() Request {
	folders := make([]string, 0, len(r.InputFolders))
	for _, folder := range r.InputFolders {
		if trimmed := strings.TrimSpace(folder); trimmed != "" {
			folders = append(folders, trimmed)
		}
	}
	r.InputFolders = folders
	r.OutputFolder = strings.TrimSpace(r.OutputFolder)
	r.EnginePath = strings.TrimSpace(r.EnginePath)
	r.ModelPath = strings.TrimSpace(r.ModelPath)
	r.ConverterPath = strings.TrimSpace(r.ConverterPath)
	r.BeforeDate = strings.TrimSpace(r.BeforeDate)
	r.ExecutorOverride = strings.TrimSpace(r.ExecutorOverride)
	return r
}

// validate checks request fields before any filesystem work happens.
func (r Request) validate() *ValidationError {
	if len(r.InputFolders) == 0 {
		return &ValidationError{Field: "input_folders", Message: "at least one input folder is required"}
	}
	if r.OutputFolder == "" {
		return &ValidationError{Field: "output_folder", Message: "output folder is required"}
	}
	if r.EnginePath == "" {
		return &ValidationError{Field: "engine_path", Message: "recognition engine path is required"}
	}
	if r.ModelPath == "" {
		return &ValidationError{Field: "model_path", Message: "model file path is required"}
	}
	if r.Threads < 1 {
		return &ValidationError{Field: "threads", Message: "must be at least 1"}
	}
	if r.Limit < 0 {
		return &ValidationError{Field: "limit", Message: "cannot be negative"}
	}
	if r.BeforeDate != "" {
		if _, err := time.Parse("2006-01-02", r.BeforeDate); err != nil {
			return &ValidationError{Field: "before_date", Message: "must be formatted YYYY-MM-DD"}
		}
	}
	return nil
}
