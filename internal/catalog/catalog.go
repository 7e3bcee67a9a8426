// Package catalog keeps a SQLite ledger of organize runs.
//
// Each run gets a UUID row in runs; every processed index row lands in
// samples with its split, class and outcome. `yp status` reads it back.
//
// The database uses WAL mode so worker goroutines can record samples while
// the CLI reads.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNoRuns is returned by LastRun on an empty catalog.
var ErrNoRuns = errors.New("no runs recorded")

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is a row of the runs table.
type Run struct {
	ID         string
	Dataset    string
	OutputDir  string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
}

// DB wraps the catalog connection.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates the catalog at path and initializes its schema.
//
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping catalog: %w", err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, path: path}

	if err := db.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file location.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close catalog: %w", err)
	}
	db.conn = nil
	return nil
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE TABLE IF NOT EXISTS samples (
		run_id TEXT NOT NULL,
		split TEXT NOT NULL,
		filename TEXT NOT NULL,
		label TEXT NOT NULL,
		class_id INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		dest TEXT,
		PRIMARY KEY (run_id, split, filename),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_samples_outcome ON samples(run_id, split, outcome);
	`
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// BeginRun inserts a running row and returns it.
func (db *DB) BeginRun(ctx context.Context, dataset, outputDir string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Dataset:   dataset,
		OutputDir: outputDir,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, output_dir, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, run.OutputDir, run.StartedAt.Format(timeLayout), run.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with a finish time and status.
func (db *DB) FinishRun(ctx context.Context, runID, status string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), status, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// RecordSample upserts one processed row.
func (db *DB) RecordSample(ctx context.Context, runID, split, filename, label string, classID int, outcome, dest string) error {
	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO samples (run_id, split, filename, label, class_id, outcome, dest)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, split, filename) DO UPDATE SET
		label = excluded.label,
		class_id = excluded.class_id,
		outcome = excluded.outcome,
		dest = excluded.dest
	`, runID, split, filename, label, classID, outcome, dest)
	if err != nil {
		return fmt.Errorf("failed to record sample %s: %w", filename, err)
	}
	return nil
}

// LastRun returns the most recently started run.
func (db *DB) LastRun(ctx context.Context) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
	)
	err := db.conn.QueryRowContext(ctx, `
	SELECT id, dataset, output_dir, started_at, finished_at, status
	FROM runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&run.ID, &run.Dataset, &run.OutputDir, &started, &finished, &run.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// SplitCounts maps split -> outcome -> count for a run.
func (db *DB) SplitCounts(ctx context.Context, runID string) (map[string]map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT split, outcome, COUNT(*) FROM samples
	WHERE run_id = ? GROUP BY split, outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query split counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]map[string]int{}
	for rows.Next() {
		var split, outcome string
		var n int
		if err := rows.Scan(&split, &outcome, &n); err != nil {
			return nil, fmt.Errorf("failed to scan split counts: %w", err)
		}
		if counts[split] == nil {
			counts[split] = map[string]int{}
		}
		counts[split][outcome] = n
	}
	return counts, rows.Err()
}
