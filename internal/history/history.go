// Package history persists one row per completed run in a local SQLite
// database, so operators can see what recent runs did without scraping
// console output.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Run is one completed reconciliation pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Namespace  string
	DryRun     bool
	Projects   int
	Applied    int
	Skipped    int
	Errors     int
	ExitCode   int
}

// Store wraps the runs table. A CLI process opens it once, records one
// row at exit, and closes it; concurrent writers are serialized by the
// busy timeout.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	namespace TEXT NOT NULL,
	dry_run INTEGER NOT NULL,
	projects INTEGER NOT NULL,
	applied INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	errors INTEGER NOT NULL,
	exit_code INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Open opens (or creates) the run history database and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history: db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		path, int((5 * time.Second).Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts one completed run.
func (s *Store) Record(ctx context.Context, r Run) error {
	if r.ID == "" {
		return fmt.Errorf("history: run id cannot be empty")
	}

	dryRun := 0
	if r.DryRun {
		dryRun = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, namespace, dry_run,
			projects, applied, skipped, errors, exit_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.Unix(),
		r.FinishedAt.Unix(),
		r.Namespace,
		dryRun,
		r.Projects,
		r.Applied,
		r.Skipped,
		r.Errors,
		r.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("history: record run: %w", err)
	}
	return nil
}

// Recent returns the n most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, namespace, dry_run,
			projects, applied, skipped, errors, exit_code
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                   Run
			startedAt, finished int64
			dryRun              int
		)
		if err := rows.Scan(&r.ID, &startedAt, &finished, &r.Namespace, &dryRun,
			&r.Projects, &r.Applied, &r.Skipped, &r.Errors, &r.ExitCode); err != nil {
			return nil, fmt.Errorf("history: scan row: %w", err)
		}
		r.StartedAt = time.Unix(startedAt, 0).UTC()
		r.FinishedAt = time.Unix(finished, 0).UTC()
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate rows: %w", err)
	}
	return runs, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
