package state

import (
	"context"
	"fmt"
	"time"
)

// Run is one recorded server run: when it started, where it listened,
// and how it ended.
type Run struct {
	ID        string
	Address   string
	PID       int
	StartedAt time.Time
	StoppedAt time.Time // zero when the run is still open
	Outcome   string    // "" while running, then "stopped" or an error text
}

type RunStore struct {
	db *DB
}

// NewRunStore creates the store and ensures the table exists.
func NewRunStore(ctx context.Context, database *DB) (*RunStore, error) {
	if database == nil {
		return nil, fmt.Errorf("runstore: nil database")
	}
	s := &RunStore{db: database}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

var defaultRunStore *RunStore

func DefaultRunStore(ctx context.Context) (*RunStore, error) {
	if defaultRunStore == nil {
		db, err := OpenDefault(ctx)
		if err != nil {
			return nil, err
		}
		defaultRunStore, err = NewRunStore(ctx, db)
		if err != nil {
			return nil, err
		}
	}

	return defaultRunStore, nil
}

func (s *RunStore) ensureSchema(ctx context.Context) error {
	const createTable = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	pid        INTEGER NOT NULL,
	started_at INTEGER NOT NULL,
	stopped_at INTEGER,
	outcome    TEXT
);
`
	_, err := s.db.Raw().ExecContext(ctx, createTable)
	if err != nil {
		return fmt.Errorf("runstore: ensure schema: %w", err)
	}
	return nil
}

// Record inserts a new open run row.
func (s *RunStore) Record(ctx context.Context, run Run) error {
	const stmt = `
INSERT INTO runs (id, address, pid, started_at)
VALUES (?, ?, ?, ?);
`
	if _, err := s.db.Raw().ExecContext(ctx, stmt,
		run.ID, run.Address, run.PID, run.StartedAt.Unix()); err != nil {
		return fmt.Errorf("runstore: record: %w", err)
	}
	return nil
}

// Finish closes the run row with a stop time and outcome.
func (s *RunStore) Finish(ctx context.Context, id string, outcome string) error {
	const stmt = `
UPDATE runs
SET stopped_at = strftime('%s','now'),
    outcome = ?
WHERE id = ?;
`
	if _, err := s.db.Raw().ExecContext(ctx, stmt, outcome, id); err != nil {
		return fmt.Errorf("runstore: finish: %w", err)
	}
	return nil
}

// List returns the most recent runs first, at most limit rows.
// limit <= 0 means no limit.
func (s *RunStore) List(ctx context.Context, limit int) ([]Run, error) {
	q := `
SELECT id, address, pid, started_at, stopped_at, outcome
FROM runs
ORDER BY started_at DESC
`
	args := []any{}
	if limit > 0 {
		q += "LIMIT ?\n"
		args = append(args, limit)
	}

	rows, err := s.db.Raw().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var startedAtUnix int64
		var stoppedAtUnix *int64
		var outcome *string
		if err := rows.Scan(&r.ID, &r.Address, &r.PID, &startedAtUnix, &stoppedAtUnix, &outcome); err != nil {
			return nil, fmt.Errorf("runstore: list scan: %w", err)
		}
		r.StartedAt = time.Unix(startedAtUnix, 0).UTC()
		if stoppedAtUnix != nil {
			r.StoppedAt = time.Unix(*stoppedAtUnix, 0).UTC()
		}
		if outcome != nil {
			r.Outcome = *outcome
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: list rows: %w", err)
	}
	return runs, nil
}

// Clear deletes all run rows and returns how many were removed.
func (s *RunStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.Raw().ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("runstore: clear: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
