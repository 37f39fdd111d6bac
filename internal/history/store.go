// Package history records batch and pipe runs in a SQLite database.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/jxucoder/llmproc/pkg/model"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = errors.New("run not found")

// Mode is how a run was invoked.
type Mode string

const (
	ModeBatch Mode = "batch"
	ModePipe  Mode = "pipe"
)

// Run is one invocation of llmproc.
type Run struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Mode        Mode      `json:"mode"`
	Input       string    `json:"input"`
	Output      string    `json:"output"`
	Model       string    `json:"model"`
	Concurrency int       `json:"concurrency"`
	MaxRetries  int       `json:"max_retries"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Item is the recorded outcome of one work item.
type Item struct {
	RunID       string       `json:"run_id"`
	Index       int          `json:"index"`
	Source      string       `json:"source"`
	Destination string       `json:"destination,omitempty"`
	Status      model.Status `json:"status"`
	Attempts    int          `json:"attempts"`
	Error       string       `json:"error,omitempty"`
	DurationMS  int64        `json:"duration_ms"`
}

// NewRunID returns a short random run identifier.
func NewRunID() string {
	return uuid.New().String()[:8]
}

// Store manages run persistence in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			mode        TEXT NOT NULL DEFAULT 'batch',
			input       TEXT NOT NULL DEFAULT '',
			output      TEXT NOT NULL DEFAULT '',
			model       TEXT NOT NULL DEFAULT '',
			concurrency INTEGER NOT NULL DEFAULT 1,
			max_retries INTEGER NOT NULL DEFAULT 0,
			succeeded   INTEGER NOT NULL DEFAULT 0,
			failed      INTEGER NOT NULL DEFAULT 0,
			started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
			finished_at DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS run_items (
			run_id      TEXT NOT NULL,
			idx         INTEGER NOT NULL,
			source      TEXT NOT NULL,
			destination TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			attempts    INTEGER NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, idx),
			FOREIGN KEY (run_id) REFERENCES runs(id)
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started_at
			ON runs(started_at);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished run and its outcomes in one transaction. The
// run's Succeeded and Failed counts are filled from outcomes.
func (s *Store) Record(run *Run, outcomes []model.Outcome) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	run.Succeeded, run.Failed = 0, 0
	for _, o := range outcomes {
		if o.OK() {
			run.Succeeded++
		} else {
			run.Failed++
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, name, mode, input, output, model, concurrency, max_retries,
		                   succeeded, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Mode, run.Input, run.Output, run.Model, run.Concurrency, run.MaxRetries,
		run.Succeeded, run.Failed, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO run_items (run_id, idx, source, destination, status, attempts, error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range outcomes {
		var msg string
		if o.Err != nil {
			msg = o.Err.Error()
		}
		if _, err := stmt.Exec(
			run.ID, o.Item.Index, o.Item.Source(), o.Destination, o.Status,
			o.Attempts, msg, o.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("inserting item %d: %w", o.Item.Index, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, name, mode, input, output, model, concurrency, max_retries,
		        succeeded, failed, started_at, finished_at
		 FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, name, mode, input, output, model, concurrency, max_retries,
		        succeeded, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Items returns the recorded outcomes of a run in enumeration order.
func (s *Store) Items(runID string) ([]*Item, error) {
	rows, err := s.db.Query(
		`SELECT run_id, idx, source, destination, status, attempts, error, duration_ms
		 FROM run_items WHERE run_id = ? ORDER BY idx ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it := &Item{}
		if err := rows.Scan(&it.RunID, &it.Index, &it.Source, &it.Destination,
			&it.Status, &it.Attempts, &it.Error, &it.DurationMS); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	r := &Run{}
	err := row.Scan(
		&r.ID, &r.Name, &r.Mode, &r.Input, &r.Output, &r.Model, &r.Concurrency, &r.MaxRetries,
		&r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}
