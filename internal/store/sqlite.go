package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/halcyon-research/market-cli/internal/extract"
)

// SQLiteJournal implements Journal using modernc.org/sqlite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_runs (
	run_id      TEXT PRIMARY KEY,
	spec        TEXT NOT NULL,
	table_name  TEXT NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	selected    INTEGER NOT NULL DEFAULT 0,
	inserted    INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	unchanged   INTEGER NOT NULL DEFAULT 0,
	empty       INTEGER NOT NULL DEFAULT 0,
	deferred    INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_extraction_runs_spec ON extraction_runs(spec);
CREATE INDEX IF NOT EXISTS idx_extraction_runs_started_at ON extraction_runs(started_at);
`

func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) RecordPass(ctx context.Context, res *extract.PassResult) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO extraction_runs
		   (run_id, spec, table_name, started_at, finished_at,
		    selected, inserted, updated, unchanged, empty, deferred, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID.String(), res.Spec, res.Table, res.StartedAt.UTC(), res.FinishedAt.UTC(),
		res.Selected, res.Inserted, res.Updated, res.Unchanged, res.Empty, res.Deferred, res.Failed,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record pass %s", res.RunID)
	}
	return nil
}

func (j *SQLiteJournal) ListPasses(ctx context.Context, filter PassFilter) ([]extract.PassResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, spec, table_name, started_at, finished_at,
		       selected, inserted, updated, unchanged, empty, deferred, failed
		FROM extraction_runs`
	args := []any{}
	if filter.Spec != "" {
		query += ` WHERE spec = ?`
		args = append(args, filter.Spec)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list passes")
	}
	defer rows.Close()

	var out []extract.PassResult
	for rows.Next() {
		var r extract.PassResult
		var runID string
		if err := rows.Scan(&runID, &r.Spec, &r.Table, &r.StartedAt, &r.FinishedAt,
			&r.Selected, &r.Inserted, &r.Updated, &r.Unchanged, &r.Empty, &r.Deferred, &r.Failed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pass")
		}
		id, err := uuid.Parse(runID)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bad run_id %q", runID)
		}
		r.RunID = id
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate passes")
}
