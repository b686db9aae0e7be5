package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one transcription run, finished or still in flight.
type Record struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time
	Folders      []string
	OutputFolder string
	Completed    bool
	Success      bool
	ExitCode     int
	Message      string
	Counts       map[string]int
}

// Duration reports how long the run took, or zero while it is running.
func (r Record) Duration() time.Duration {
	if !r.Completed || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordStart inserts a new in-flight run row.
func (s *Store) RecordStart(id string, startedAt time.Time, folders []string, output string) error {
	foldersJSON, err := json.Marshal(folders)
	if err != nil {
		return fmt.Errorf("encode folders: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO runs (id, started_at, folders_json, output_folder) VALUES (?, ?, ?, ?)`,
		id,
		startedAt.UTC().Format(time.RFC3339Nano),
		string(foldersJSON),
		output,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", id, err)
	}
	return nil
}

// RecordFinish finalizes a run row with its outcome.
func (s *Store) RecordFinish(id string, finishedAt time.Time, success bool, exitCode int, message string, counts map[string]int) error {
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}
	res, err := s.db.ExecContext(context.Background(),
		`UPDATE runs SET finished_at = ?, success = ?, exit_code = ?, message = ?, counts_json = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(success),
		exitCode,
		message,
		string(countsJSON),
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("finish run %s: no such run", id)
	}
	return nil
}

// List returns runs newest first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, started_at, finished_at, folders_json, output_folder, success, exit_code, message, counts_json
		FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

// MarkInterrupted closes out runs left unfinished by a daemon restart.
func (s *Store) MarkInterrupted(ctx context.Context, message string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, success = 0, exit_code = -1, message = ? WHERE finished_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano),
		message,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Prune deletes all but the newest keep runs.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		id          string
		startedRaw  string
		finishedRaw sql.NullString
		foldersJSON sql.NullString
		output      sql.NullString
		success     sql.NullInt64
		exitCode    sql.NullInt64
		message     sql.NullString
		countsJSON  sql.NullString
	)
	if err := scanner.Scan(&id, &startedRaw, &finishedRaw, &foldersJSON, &output, &success, &exitCode, &message, &countsJSON); err != nil {
		return Record{}, fmt.Errorf("scan run row: %w", err)
	}

	rec := Record{
		ID:           id,
		OutputFolder: output.String,
		Message:      message.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		rec.StartedAt = started
	}
	if finishedRaw.Valid {
		rec.Completed = true
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			rec.FinishedAt = finished
		}
		rec.Success = success.Int64 != 0
		rec.ExitCode = int(exitCode.Int64)
	}
	if foldersJSON.Valid && foldersJSON.String != "" {
		if err := json.Unmarshal([]byte(foldersJSON.String), &rec.Folders); err != nil {
			return Record{}, fmt.Errorf("decode folders for run %s: %w", id, err)
		}
	}
	if countsJSON.Valid && countsJSON.String != "" && countsJSON.String != "null" {
		if err := json.Unmarshal([]byte(countsJSON.String), &rec.Counts); err != nil {
			return Record{}, fmt.Errorf("decode counts for run %s: %w", id, err)
		}
	}
	return rec, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
