package store

import (
	"context"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/db"
	"github.com/halcyon-research/market-cli/internal/extract"
)

// PostgresJournal implements Journal on market_data.extraction_runs.
type PostgresJournal struct {
	pool db.Pool
}

// NewPostgres creates a journal backed by the given pool. The table is
// created by the embedded migrations, not here.
func NewPostgres(pool db.Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

func (j *PostgresJournal) RecordPass(ctx context.Context, res *extract.PassResult) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO market_data.extraction_runs
		   (run_id, spec, table_name, started_at, finished_at,
		    selected, inserted, updated, unchanged, empty, deferred, failed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.RunID, res.Spec, res.Table, res.StartedAt, res.FinishedAt,
		res.Selected, res.Inserted, res.Updated, res.Unchanged, res.Empty, res.Deferred, res.Failed,
	)
	if err != nil {
		return eris.Wrapf(err, "store: record pass %s", res.RunID)
	}
	return nil
}

func (j *PostgresJournal) ListPasses(ctx context.Context, filter PassFilter) ([]extract.PassResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, spec, table_name, started_at, finished_at,
		       selected, inserted, updated, unchanged, empty, deferred, failed
		FROM market_data.extraction_runs`
	args := []any{}
	if filter.Spec != "" {
		query += ` WHERE spec = $1`
		args = append(args, filter.Spec)
	}
	query += ` ORDER BY started_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list passes")
	}
	defer rows.Close()

	var out []extract.PassResult
	for rows.Next() {
		var r extract.PassResult
		if err := rows.Scan(&r.RunID, &r.Spec, &r.Table, &r.StartedAt, &r.FinishedAt,
			&r.Selected, &r.Inserted, &r.Updated, &r.Unchanged, &r.Empty, &r.Deferred, &r.Failed); err != nil {
			return nil, eris.Wrap(err, "store: scan pass")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate passes")
}

// Migrate is a no-op; the embedded migration set owns the Postgres schema.
func (j *PostgresJournal) Migrate(ctx context.Context) error { return nil }

func (j *PostgresJournal) Close() error { return nil }
