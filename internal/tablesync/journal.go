package tablesync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Run statuses stored in the journal.
const (
	RunRunning = "running"
	RunOK      = "ok"
	RunPartial = "partial"
	RunAborted = "aborted"
	RunFailed  = "failed"
)

const journalDirPermissions = 0o700

const (
	sqlInsertRun = `INSERT INTO runs (id, command, config_path, started_at, status)
		VALUES (?, ?, ?, ?, 'running')`

	sqlFinishRun = `UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`

	sqlInsertStaging = `INSERT INTO staging_sheets (sheet_id, run_id, table_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(sheet_id) DO UPDATE SET
		 run_id = excluded.run_id,
		 table_name = excluded.table_name,
		 created_at = excluded.created_at,
		 removed_at = NULL,
		 last_error = NULL`

	sqlMarkRemoved = `UPDATE staging_sheets SET removed_at = ? WHERE sheet_id = ?`

	sqlNoteStagingError = `UPDATE staging_sheets SET last_error = ? WHERE sheet_id = ?`

	sqlOpenStaging = `SELECT sheet_id, run_id, table_name, created_at, last_error
		FROM staging_sheets WHERE removed_at IS NULL ORDER BY created_at, sheet_id`

	sqlLastRun = `SELECT id, command, config_path, started_at, finished_at, status
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`
)

// ErrNoRuns is returned by LastRun on an empty journal.
var ErrNoRuns = errors.New("tablesync: journal has no runs")

// StagingSheet is a staging sheet the journal has not seen removed.
type StagingSheet struct {
	SheetID   int64     `json:"sheet_id"`
	RunID     string    `json:"run_id"`
	Table     string    `json:"table"`
	CreatedAt time.Time `json:"created_at"`
	LastError string    `json:"last_error,omitempty"`
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"`
	ConfigPath string    `json:"config_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
}

// Journal records runs and the staging sheets they create. It is the sole
// writer to its database.
type Journal struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// OpenJournal opens the SQLite journal at dbPath, creating the file and
// its directory if needed, and applies migrations.
func OpenJournal(ctx context.Context, dbPath string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), journalDirPermissions); err != nil {
		return nil, fmt.Errorf("tablesync: creating journal directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tablesync: opening journal %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("journal opened", slog.String("db_path", dbPath))

	return &Journal{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun records the start of a command and returns its run id.
func (j *Journal) BeginRun(ctx context.Context, command, configPath string) (string, error) {
	id := uuid.New().String()

	if _, err := j.db.ExecContext(ctx, sqlInsertRun, id, command, configPath, j.nowFunc().UnixNano()); err != nil {
		return "", fmt.Errorf("tablesync: recording run start: %w", err)
	}

	j.logger.Debug("run started", slog.String("run_id", id), slog.String("command", command))

	return id, nil
}

// FinishRun stamps a run with its final status.
func (j *Journal) FinishRun(ctx context.Context, runID, status string) error {
	if _, err := j.db.ExecContext(ctx, sqlFinishRun, j.nowFunc().UnixNano(), status, runID); err != nil {
		return fmt.Errorf("tablesync: recording run %s finish: %w", runID, err)
	}

	return nil
}

// LastRun returns the most recently started run.
func (j *Journal) LastRun(ctx context.Context) (*RunRecord, error) {
	var (
		r        RunRecord
		started  int64
		finished sql.NullInt64
	)

	err := j.db.QueryRowContext(ctx, sqlLastRun).Scan(
		&r.ID, &r.Command, &r.ConfigPath, &started, &finished, &r.Status,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}

	if err != nil {
		return nil, fmt.Errorf("tablesync: reading last run: %w", err)
	}

	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}

	return &r, nil
}

// RecordStaging notes that runID created the staging sheet sheetID for table.
func (j *Journal) RecordStaging(ctx context.Context, runID, table string, sheetID int64) error {
	if _, err := j.db.ExecContext(ctx, sqlInsertStaging, sheetID, runID, table, j.nowFunc().UnixNano()); err != nil {
		return fmt.Errorf("tablesync: recording staging sheet %d: %w", sheetID, err)
	}

	return nil
}

// MarkStagingRemoved notes that sheetID no longer exists.
func (j *Journal) MarkStagingRemoved(ctx context.Context, sheetID int64) error {
	if _, err := j.db.ExecContext(ctx, sqlMarkRemoved, j.nowFunc().UnixNano(), sheetID); err != nil {
		return fmt.Errorf("tablesync: marking staging sheet %d removed: %w", sheetID, err)
	}

	return nil
}

// NoteStagingError stores the failure that left sheetID behind.
func (j *Journal) NoteStagingError(ctx context.Context, sheetID int64, cause error) error {
	if _, err := j.db.ExecContext(ctx, sqlNoteStagingError, cause.Error(), sheetID); err != nil {
		return fmt.Errorf("tablesync: noting staging sheet %d error: %w", sheetID, err)
	}

	return nil
}

// OpenStaging lists staging sheets not yet marked removed, oldest first.
func (j *Journal) OpenStaging(ctx context.Context) ([]StagingSheet, error) {
	rows, err := j.db.QueryContext(ctx, sqlOpenStaging)
	if err != nil {
		return nil, fmt.Errorf("tablesync: listing staging sheets: %w", err)
	}
	defer rows.Close()

	var out []StagingSheet

	for rows.Next() {
		var (
			s       StagingSheet
			created int64
			lastErr sql.NullString
		)

		if err := rows.Scan(&s.SheetID, &s.RunID, &s.Table, &created, &lastErr); err != nil {
			return nil, fmt.Errorf("tablesync: scanning staging sheet: %w", err)
		}

		s.CreatedAt = time.Unix(0, created)
		s.LastError = lastErr.String
		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tablesync: iterating staging sheets: %w", err)
	}

	return out, nil
}
