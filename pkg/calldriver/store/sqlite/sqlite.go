// Package sqlite is a store.Store backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/calldriver/pkg/calldriver/internalerr"
	"github.com/cognicore/calldriver/pkg/calldriver/store"
)

type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	tickets INTEGER NOT NULL,
	other_before REAL NOT NULL,
	other_after REAL NOT NULL,
	rounds INTEGER NOT NULL,
	stop TEXT
);

CREATE TABLE IF NOT EXISTS tickets (
	run_id TEXT NOT NULL,
	idx INTEGER NOT NULL,
	ref TEXT,
	text TEXT,
	driver TEXT NOT NULL,
	source TEXT,
	PRIMARY KEY(run_id, idx),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tickets_driver ON tickets(run_id, driver);

CREATE TABLE IF NOT EXISTS cluster_labels (
	run_id TEXT NOT NULL,
	driver TEXT NOT NULL,
	title TEXT NOT NULL,
	rationale TEXT,
	source TEXT,
	size INTEGER NOT NULL,
	PRIMARY KEY(run_id, driver),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun inserts a run with its tickets and labels in one transaction.
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run, tickets []store.Ticket, labels []store.ClusterLabel) error {
	if r.ID == "" {
		return fmt.Errorf("run id: %w", internalerr.ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, r.ID).Scan(&exists); err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("run %s: %w", r.ID, internalerr.ErrDuplicate)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (id, created_at, tickets, other_before, other_after, rounds, stop)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, r.ID, r.CreatedAt.UTC().Format(time.RFC3339Nano), r.Tickets, r.OtherBefore, r.OtherAfter, r.Rounds, r.Stop)
	if err != nil {
		return err
	}

	if len(tickets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO tickets (run_id, idx, ref, text, driver, source)
VALUES (?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range tickets {
			if _, err := stmt.ExecContext(ctx, r.ID, t.Index, t.Ref, t.Text, t.Driver, t.Source); err != nil {
				return fmt.Errorf("insert ticket %d: %w", t.Index, err)
			}
		}
	}

	if len(labels) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO cluster_labels (run_id, driver, title, rationale, source, size)
VALUES (?, ?, ?, ?, ?, ?);
`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, l := range labels {
			if _, err := stmt.ExecContext(ctx, r.ID, l.Driver, l.Title, l.Rationale, l.Source, l.Size); err != nil {
				return fmt.Errorf("insert label %s: %w", l.Driver, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run by id.
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, created_at, tickets, other_before, other_after, rounds, stop
FROM runs WHERE id = ?;
`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return r, err
}

// ListRuns returns runs newest first. ULID ids sort by creation time.
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, created_at, tickets, other_before, other_after, rounds, stop
FROM runs
ORDER BY id DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Tickets returns a run's tickets in input order.
func (s *sqliteStore) Tickets(ctx context.Context, runID string) ([]store.Ticket, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT idx, ref, text, driver, source
FROM tickets WHERE run_id = ?
ORDER BY idx;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Ticket
	for rows.Next() {
		var (
			t                 store.Ticket
			ref, text, source sql.NullString
		)
		if err := rows.Scan(&t.Index, &ref, &text, &t.Driver, &source); err != nil {
			return nil, err
		}
		t.Ref, t.Text, t.Source = ref.String, text.String, source.String
		out = append(out, t)
	}
	return out, rows.Err()
}

// ClusterLabels returns a run's cluster labels ordered by driver.
func (s *sqliteStore) ClusterLabels(ctx context.Context, runID string) ([]store.ClusterLabel, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT driver, title, rationale, source, size
FROM cluster_labels WHERE run_id = ?
ORDER BY driver;
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ClusterLabel
	for rows.Next() {
		var (
			l                 store.ClusterLabel
			rationale, source sql.NullString
		)
		if err := rows.Scan(&l.Driver, &l.Title, &rationale, &source, &l.Size); err != nil {
			return nil, err
		}
		l.Rationale, l.Source = rationale.String, source.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *sqliteStore) requireRun(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var (
		r       store.Run
		created string
		stop    sql.NullString
	)
	if err := sc.Scan(&r.ID, &created, &r.Tickets, &r.OtherBefore, &r.OtherAfter, &r.Rounds, &stop); err != nil {
		return store.Run{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return store.Run{}, fmt.Errorf("run %s created_at: %w", r.ID, err)
	}
	r.CreatedAt = t
	r.Stop = stop.String
	return r, nil
}
