package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"splicer/internal/splice"
)

const entryColumns = "id, run_id, kind, event_id, paired_event_id, running_time_ms, duration_ms, trigger_source, reason, error_message, error_kind, recorded_at"

// StartRun opens a new run and returns it.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (Run, error) {
	run := Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Target:    info.Target,
		Modes:     append([]string(nil), info.Modes...),
		PID:       info.PID,
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, started_at, output_target, trigger_modes, pid) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		nullableString(run.Target),
		nullableString(strings.Join(run.Modes, ",")),
		run.PID,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run's end time.
func (s *Store) FinishRun(ctx context.Context, runID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET ended_at = ? WHERE id = ? AND ended_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: run not found or already finished", runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, started_at, ended_at, output_target, trigger_modes, pid FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run                 Run
			started             string
			ended, target, mode sql.NullString
		)
		if err := rows.Scan(&run.ID, &started, &ended, &target, &mode, &run.PID); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(started); err == nil {
			run.StartedAt = t
		}
		if ended.Valid {
			if t, err := parseTimeString(ended.String); err == nil {
				run.EndedAt = &t
			}
		}
		run.Target = target.String
		if mode.String != "" {
			run.Modes = strings.Split(mode.String, ",")
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Record appends one dispatch attempt to runID.
func (s *Store) Record(ctx context.Context, runID string, rec splice.Record) error {
	if strings.TrimSpace(runID) == "" {
		return errors.New("record splice event: run id is required")
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	var errMsg any
	if rec.Err != nil {
		errMsg = rec.Err.Error()
	}
	var paired any
	if rec.PairedID != 0 {
		paired = int64(rec.PairedID)
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO splice_events (run_id, kind, event_id, paired_event_id, running_time_ms, duration_ms, trigger_source, reason, error_message, error_kind, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Kind.String(),
		int64(rec.ID),
		paired,
		rec.Time.Milliseconds(),
		rec.Duration.Milliseconds(),
		nullableString(rec.Source),
		nullableString(rec.Reason),
		errMsg,
		nullableString(splice.ErrorKind(rec.Err)),
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record splice event %d: %w", rec.ID, err)
	}
	return nil
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Entry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var (
		clauses []string
		args    []any
	)
	if filter.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Failed {
		clauses = append(clauses, "error_message IS NOT NULL")
	}
	query := "SELECT " + entryColumns + " FROM splice_events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list splice events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Summarize counts a run's dispatch attempts.
func (s *Store) Summarize(ctx context.Context, runID string) (Summary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT kind, error_message IS NOT NULL, COUNT(1) FROM splice_events WHERE run_id = ? GROUP BY kind, error_message IS NOT NULL`, runID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var (
			kind   string
			failed bool
			count  int
		)
		if err := rows.Scan(&kind, &failed, &count); err != nil {
			return Summary{}, err
		}
		if failed {
			summary.Failed += count
			continue
		}
		switch kind {
		case splice.KindSpliceOut.String():
			summary.SpliceOuts += count
		case splice.KindSpliceIn.String():
			summary.SpliceIns += count
		}
	}
	return summary, rows.Err()
}

// Prune removes finished runs (and their events) that ended before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	stamp := cutoff.UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`DELETE FROM splice_events WHERE run_id IN (SELECT id FROM runs WHERE ended_at IS NOT NULL AND ended_at < ?)`,
		stamp,
	); err != nil {
		return 0, fmt.Errorf("prune splice events: %w", err)
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE ended_at IS NOT NULL AND ended_at < ?`,
		stamp,
	)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DatabaseHealth reports on the event log file.
type DatabaseHealth struct {
	DBPath        string `json:"db_path"`
	Exists        bool   `json:"exists"`
	SizeBytes     int64  `json:"size_bytes"`
	SchemaVersion int    `json:"schema_version"`
	IntegrityOK   bool   `json:"integrity_ok"`
}

// CheckHealth inspects the database file and runs an integrity check.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat event log: %w", err)
	}
	health.Exists = true
	health.SizeBytes = info.Size()

	ctx = ensureContext(ctx)
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		return health, fmt.Errorf("read schema version: %w", err)
	}
	var result string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityOK = result == "ok"
	return health, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (Entry, error) {
	var (
		entry                           Entry
		eventID                         int64
		paired                          sql.NullInt64
		runningMS, durationMS           int64
		source, reason, errMsg, errKind sql.NullString
		recorded                        string
	)
	if err := scanner.Scan(
		&entry.Seq,
		&entry.RunID,
		&entry.Kind,
		&eventID,
		&paired,
		&runningMS,
		&durationMS,
		&source,
		&reason,
		&errMsg,
		&errKind,
		&recorded,
	); err != nil {
		return Entry{}, err
	}
	entry.EventID = uint32(eventID)
	if paired.Valid {
		entry.PairedID = uint32(paired.Int64)
	}
	entry.RunningTime = time.Duration(runningMS) * time.Millisecond
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.Source = source.String
	entry.Reason = reason.String
	entry.Error = errMsg.String
	entry.ErrorKind = errKind.String
	if t, err := parseTimeString(recorded); err == nil {
		entry.RecordedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
