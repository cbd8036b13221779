// Package coverage reads the composite coverage scores that drive tier
// classification. Scores are produced elsewhere; this package only consumes
// them, and the scheduler degrades to staleness-only ordering when they are
// missing.
package coverage

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/db"
)

// Provider supplies composite coverage scores in [0,1] per entity.
type Provider interface {
	// Scores returns the score per entity_id for one target table. A nil map
	// with nil error means coverage inputs are unavailable.
	Scores(ctx context.Context, table string) (map[int64]float64, error)
}

// PostgresProvider reads scores from market_data.coverage_scores.
type PostgresProvider struct {
	pool db.Pool
}

// NewPostgresProvider creates a provider backed by the given pool.
func NewPostgresProvider(pool db.Pool) *PostgresProvider {
	return &PostgresProvider{pool: pool}
}

// Scores returns the most recently computed score per entity for the table.
func (p *PostgresProvider) Scores(ctx context.Context, table string) (map[int64]float64, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT ON (entity_id) entity_id, score
		 FROM market_data.coverage_scores
		 WHERE table_name = $1
		 ORDER BY entity_id, computed_at DESC`,
		table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "coverage: scores for %s", table)
	}
	defer rows.Close()

	scores := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, eris.Wrap(err, "coverage: scan score")
		}
		scores[id] = score
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "coverage: iterate scores")
	}
	if len(scores) == 0 {
		return nil, nil
	}
	return scores, nil
}
