package ipc

import (
	"time"

	"lectern/internal/runlog"
	"lectern/internal/runner"
)

// StartRunRequest launches a transcription run.
type StartRunRequest struct {
	Run runner.Request `json:"run"`
}

// StartRunResponse returns the controller state after a successful start.
type StartRunResponse struct {
	Status runner.Status `json:"status"`
}

// PauseRequest pauses or resumes the active run.
type PauseRequest struct {
	Paused bool `json:"paused"`
}

// PauseResponse returns the controller state after the toggle.
type PauseResponse struct {
	Status runner.Status `json:"status"`
}

// StopRunRequest asks the active run to stop at the next safe point.
type StopRunRequest struct{}

// StopRunResponse returns the controller state after the stop request.
type StopRunResponse struct {
	Status runner.Status `json:"status"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and run status information.
type StatusResponse struct {
	PID         int           `json:"pid"`
	StartedAt   time.Time     `json:"started_at"`
	LogPath     string        `json:"log_path"`
	HistoryPath string        `json:"history_path"`
	LockPath    string        `json:"lock_path"`
	SocketPath  string        `json:"socket_path"`
	Run         runner.Status `json:"run"`
}

// EventsRequest fetches run events recorded after a sequence number.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next fetch.
type EventsResponse struct {
	Events []runner.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// HistoryRequest lists past runs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// RunRecord is the wire form of a run history entry.
type RunRecord struct {
	ID           string         `json:"id"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Folders      []string       `json:"folders"`
	OutputFolder string         `json:"output_folder"`
	Completed    bool           `json:"completed"`
	Success      bool           `json:"success"`
	ExitCode     int            `json:"exit_code"`
	Message      string         `json:"message"`
	Counts       map[string]int `json:"counts,omitempty"`
}

// HistoryResponse contains run history entries, newest first.
type HistoryResponse struct {
	Runs []RunRecord `json:"runs"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ShutdownRequest asks the daemon process to exit.
type ShutdownRequest struct {
	Force bool `json:"force"`
}

// ShutdownResponse reports whether the daemon accepted the shutdown.
type ShutdownResponse struct {
	ShuttingDown bool   `json:"shutting_down"`
	Message      string `json:"message"`
}

func runRecordFromStore(rec runlog.Record) RunRecord {
	return RunRecord{
		ID:           rec.ID,
		StartedAt:    rec.StartedAt,
		FinishedAt:   rec.FinishedAt,
		Folders:      rec.Folders,
		OutputFolder: rec.OutputFolder,
		Completed:    rec.Completed,
		Success:      rec.Success,
		ExitCode:     rec.ExitCode,
		Message:      rec.Message,
		Counts:       rec.Counts,
	}
}
