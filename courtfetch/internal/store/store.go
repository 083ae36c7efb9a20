// Package store keeps the history of finished runs in SQLite so past
// batches can be reviewed and resubmitted.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/hcbot/courtfetch/record"
)

// ErrNotFound is returned by GetRun for unknown IDs.
var ErrNotFound = errors.New("store: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	label       TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	fetched     INTEGER NOT NULL,
	no_document INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS run_outcomes (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq              INTEGER NOT NULL,
	case_label       TEXT NOT NULL,
	terminal_reached INTEGER NOT NULL,
	document_fetched INTEGER NOT NULL,
	reason           TEXT NOT NULL,
	attempts         INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_results (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	label       TEXT NOT NULL,
	description TEXT NOT NULL,
	order_date  TEXT NOT NULL,
	pages       INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS run_cases (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq            INTEGER NOT NULL,
	court          TEXT NOT NULL,
	bench          TEXT NOT NULL,
	case_type      TEXT NOT NULL,
	mode           TEXT NOT NULL,
	no             TEXT NOT NULL,
	year           TEXT NOT NULL,
	court_code     TEXT NOT NULL,
	bench_code     TEXT NOT NULL,
	case_type_code TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Store is the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun inserts or replaces a run with its outcomes, results and rows.
func (s *Store) SaveRun(ctx context.Context, sum *record.RunSummary) error {
	if sum.ID == "" {
		return errors.New("store: run has no id")
	}
	return runTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, sum.ID); err != nil {
			return fmt.Errorf("store: replace run: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, label, started_at, finished_at, total, fetched, no_document, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sum.ID, sum.Label, sum.StartedAt.UnixMilli(), sum.FinishedAt.UnixMilli(),
			sum.Total, sum.Fetched, sum.NoDocument, sum.Failed)
		if err != nil {
			return fmt.Errorf("store: insert run: %w", err)
		}
		for i, o := range sum.Outcomes {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_outcomes (run_id, seq, case_label, terminal_reached, document_fetched, reason, attempts)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				sum.ID, i, o.Case, o.TerminalReached, o.DocumentFetched, o.Reason, o.Attempts)
			if err != nil {
				return fmt.Errorf("store: insert outcome: %w", err)
			}
		}
		for i, r := range sum.Results {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_results (run_id, seq, label, description, order_date, pages)
				VALUES (?, ?, ?, ?, ?, ?)`,
				sum.ID, i, r.Label, r.Description, r.OrderDate, r.Pages)
			if err != nil {
				return fmt.Errorf("store: insert result: %w", err)
			}
		}
		for i, c := range sum.Cases {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO run_cases (run_id, seq, court, bench, case_type, mode, no, year, court_code, bench_code, case_type_code)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				sum.ID, i, c.Court, c.Bench, c.CaseType, c.Mode, c.No, c.Year, c.CourtCode, c.BenchCode, c.CaseTypeCode)
			if err != nil {
				return fmt.Errorf("store: insert case: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns up to limit runs, newest first, with counters but
// without outcomes, results or rows. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*record.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, label, started_at, finished_at, total, fetched, no_document, failed
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []*record.RunSummary
	for rows.Next() {
		sum, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetRun loads one run in full.
func (s *Store) GetRun(ctx context.Context, id string) (*record.RunSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, started_at, finished_at, total, fetched, no_document, failed
		FROM runs WHERE id = ?`, id)
	sum, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadOutcomes(ctx, sum); err != nil {
		return nil, err
	}
	if err := s.loadResults(ctx, sum); err != nil {
		return nil, err
	}
	if err := s.loadCases(ctx, sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Prune deletes all but the newest keep runs and returns how many went.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*record.RunSummary, error) {
	var sum record.RunSummary
	var started, finished int64
	err := sc.Scan(&sum.ID, &sum.Label, &started, &finished,
		&sum.Total, &sum.Fetched, &sum.NoDocument, &sum.Failed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	sum.StartedAt = time.UnixMilli(started).UTC()
	sum.FinishedAt = time.UnixMilli(finished).UTC()
	return &sum, nil
}

func (s *Store) loadOutcomes(ctx context.Context, sum *record.RunSummary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_label, terminal_reached, document_fetched, reason, attempts
		FROM run_outcomes WHERE run_id = ? ORDER BY seq`, sum.ID)
	if err != nil {
		return fmt.Errorf("store: load outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var o record.CaseOutcome
		if err := rows.Scan(&o.Case, &o.TerminalReached, &o.DocumentFetched, &o.Reason, &o.Attempts); err != nil {
			return fmt.Errorf("store: scan outcome: %w", err)
		}
		sum.Outcomes = append(sum.Outcomes, o)
	}
	return rows.Err()
}

func (s *Store) loadResults(ctx context.Context, sum *record.RunSummary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, description, order_date, pages
		FROM run_results WHERE run_id = ? ORDER BY seq`, sum.ID)
	if err != nil {
		return fmt.Errorf("store: load results: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r record.FetchResult
		if err := rows.Scan(&r.Label, &r.Description, &r.OrderDate, &r.Pages); err != nil {
			return fmt.Errorf("store: scan result: %w", err)
		}
		sum.Results = append(sum.Results, r)
	}
	return rows.Err()
}

func (s *Store) loadCases(ctx context.Context, sum *record.RunSummary) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT court, bench, case_type, mode, no, year, court_code, bench_code, case_type_code
		FROM run_cases WHERE run_id = ? ORDER BY seq`, sum.ID)
	if err != nil {
		return fmt.Errorf("store: load cases: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c record.CaseRow
		if err := rows.Scan(&c.Court, &c.Bench, &c.CaseType, &c.Mode, &c.No, &c.Year,
			&c.CourtCode, &c.BenchCode, &c.CaseTypeCode); err != nil {
			return fmt.Errorf("store: scan case: %w", err)
		}
		sum.Cases = append(sum.Cases, c)
	}
	return rows.Err()
}
