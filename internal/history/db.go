// Package history provides SQLite-based run history for Weft.
// Every plan and its outcome is recorded so past runs can be inspected
// with `weft status`.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/weft/pkg/models"
)

// DB wraps an SQLite database connection with run-history operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultPath returns the path to the history database under XDG data.
func DefaultPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "weft", "history.db")
}

// Open opens an SQLite database at the given path and applies migrations.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// migrate applies all pending schema migrations.
func (db *DB) migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Runs},
		{2, migrationV2Tasks},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Runs = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	request TEXT NOT NULL,
	complexity TEXT NOT NULL,
	task_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	fail_count INTEGER NOT NULL DEFAULT 0,
	skipped_count INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

const migrationV2Tasks = `
CREATE TABLE IF NOT EXISTS run_tasks (
	run_id TEXT NOT NULL REFERENCES runs(id),
	task_id TEXT NOT NULL,
	description TEXT NOT NULL,
	depends_on TEXT,
	status TEXT NOT NULL DEFAULT 'pending',
	attempts INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	PRIMARY KEY (run_id, task_id)
);

CREATE INDEX IF NOT EXISTS idx_run_tasks_run_id ON run_tasks(run_id);
CREATE INDEX IF NOT EXISTS idx_run_tasks_status ON run_tasks(status);
`

// Run is a single recorded plan execution.
type Run struct {
	ID           string
	Request      string
	Complexity   string
	TaskCount    int
	SuccessCount int
	FailCount    int
	SkippedCount int
	Duration     time.Duration
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// TaskRecord is the stored state of one task within a run.
type TaskRecord struct {
	RunID       string
	TaskID      string
	Description string
	DependsOn   []string
	Status      string
	Attempts    int
	Error       string
}

// RecordPlan inserts a run row and one row per planned task.
func (db *DB) RecordPlan(plan *models.Plan) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, request, complexity, task_count, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, plan.ID, plan.OriginalRequest, string(plan.Complexity), len(plan.Tasks), formatTime(plan.CreatedAt))
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for _, task := range plan.Tasks {
		_, err = tx.Exec(`
			INSERT INTO run_tasks (run_id, task_id, description, depends_on, status)
			VALUES (?, ?, ?, ?, ?)
		`, plan.ID, task.ID, task.Description, strings.Join(task.Dependencies, ","), string(task.Status))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("insert task %s: %w", task.ID, err)
		}
	}

	return tx.Commit()
}

// RecordOutcome updates the run row and all task rows with final results.
func (db *DB) RecordOutcome(plan *models.Plan, summary *models.OutcomeSummary) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	finished := time.Now()
	_, err = tx.Exec(`
		UPDATE runs
		SET success_count = ?, fail_count = ?, skipped_count = ?, duration_ms = ?, finished_at = ?
		WHERE id = ?
	`, summary.SuccessCount, summary.FailCount, summary.SkippedCount,
		summary.Duration.Milliseconds(), formatTime(finished), summary.PlanID)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update run: %w", err)
	}

	byTask := make(map[string]*models.TaskResult, len(summary.Results))
	for _, result := range summary.Results {
		byTask[result.TaskID] = result
	}

	for _, task := range plan.Tasks {
		attempts := task.RetryCount + 1
		if result, ok := byTask[task.ID]; ok && result.Attempts > 0 {
			attempts = result.Attempts
		}
		_, err = tx.Exec(`
			UPDATE run_tasks
			SET status = ?, attempts = ?, error = ?
			WHERE run_id = ? AND task_id = ?
		`, string(task.Status), attempts, task.Error, summary.PlanID, task.ID)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("update task %s: %w", task.ID, err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns the most recent runs, newest first.
func (db *DB) RecentRuns(limit int) ([]*Run, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := db.conn.Query(`
		SELECT id, request, complexity, task_count, success_count, fail_count,
		       skipped_count, duration_ms, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		var durationMS int64
		var startedAt string
		var finishedAt sql.NullString

		err := rows.Scan(&r.ID, &r.Request, &r.Complexity, &r.TaskCount,
			&r.SuccessCount, &r.FailCount, &r.SkippedCount,
			&durationMS, &startedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		r.Duration = time.Duration(durationMS) * time.Millisecond
		if r.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		r.FinishedAt = parseNullableTime(finishedAt)

		runs = append(runs, &r)
	}

	return runs, rows.Err()
}

// RunTasks returns the task records for a run.
func (db *DB) RunTasks(runID string) ([]*TaskRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query(`
		SELECT run_id, task_id, description, depends_on, status, attempts, COALESCE(error, '')
		FROM run_tasks
		WHERE run_id = ?
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var records []*TaskRecord
	for rows.Next() {
		var tr TaskRecord
		var dependsOn string

		err := rows.Scan(&tr.RunID, &tr.TaskID, &tr.Description, &dependsOn,
			&tr.Status, &tr.Attempts, &tr.Error)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}

		if dependsOn != "" {
			tr.DependsOn = strings.Split(dependsOn, ",")
		}

		records = append(records, &tr)
	}

	return records, rows.Err()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
