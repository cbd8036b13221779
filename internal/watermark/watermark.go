// Package watermark tracks per-(entity, table) extraction progress: last
// period ingested, last success time, and the consecutive-failure circuit
// breaker.
package watermark

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/db"
)

// Watermark is the durable progress record for one entity and target table.
type Watermark struct {
	TableName           string     `json:"table_name"`
	EntityID            int64      `json:"entity_id"`
	LastPeriod          *time.Time `json:"last_period,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Candidate is a due entity as returned by GetDue, carrying the watermark
// fields the scheduler orders by.
type Candidate struct {
	EntityID            int64
	Symbol              string
	LastPeriod          *time.Time
	LastSuccessAt       *time.Time
	ConsecutiveFailures int
}

// Summary counts entities per freshness state for one table.
type Summary struct {
	Table     string `json:"table"`
	Never     int    `json:"never"`
	Fresh     int    `json:"fresh"`
	Stale     int    `json:"stale"`
	Suspended int    `json:"suspended"`
}

// DueOptions filters GetDue.
type DueOptions struct {
	Staleness      time.Duration
	FailureCeiling int
	// ExpectedPeriod excludes entities whose last_period already covers the
	// latest period assumed available upstream. Zero disables the check.
	ExpectedPeriod time.Time
	AssetTypes     []string
	Limit          int
}

// Store provides read/write access to market_data.extraction_watermarks.
type Store struct {
	pool db.Pool
}

// NewStore creates a watermark store backed by the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// GetDue returns active entities needing processing for a table: never
// processed first, then oldest success first, symbol as the tie-break.
// Entities at or above the failure ceiling are excluded until reset, and
// entities already covering the expected period are excluded even when stale.
// Warrants, rights, preferred shares, and SPAC units are filtered out of the
// equity universe.
func (s *Store) GetDue(ctx context.Context, table string, asOf time.Time, opts DueOptions) ([]Candidate, error) {
	assetTypes := opts.AssetTypes
	if len(assetTypes) == 0 {
		assetTypes = []string{"Stock", "ETF", "Indicator"}
	}

	var expected *time.Time
	if !opts.ExpectedPeriod.IsZero() {
		expected = &opts.ExpectedPeriod
	}

	query := `
		SELECT e.entity_id, e.symbol, w.last_period, w.last_success_at,
		       COALESCE(w.consecutive_failures, 0)
		FROM market_data.entities e
		LEFT JOIN market_data.extraction_watermarks w
		  ON w.entity_id = e.entity_id AND w.table_name = $1
		WHERE LOWER(e.status) = 'active'
		  AND e.asset_type = ANY($2)
		  AND e.symbol NOT LIKE '%-WS%'
		  AND e.symbol NOT LIKE '%-P%'
		  AND e.symbol NOT LIKE '%-R'
		  AND e.symbol NOT LIKE '%-U'
		  AND COALESCE(w.consecutive_failures, 0) < $3
		  AND (w.last_success_at IS NULL OR w.last_success_at < $4)
		  AND ($5::date IS NULL OR w.last_period IS NULL OR w.last_period < $5)
		ORDER BY CASE WHEN w.last_success_at IS NULL THEN 0 ELSE 1 END,
		         COALESCE(w.last_success_at, '1900-01-01'::timestamptz) ASC,
		         e.symbol ASC`

	args := []any{table, assetTypes, opts.FailureCeiling, asOf.Add(-opts.Staleness), expected}
	if opts.Limit > 0 {
		query += ` LIMIT $6`
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "watermark: get due for %s", table)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.EntityID, &c.Symbol, &c.LastPeriod, &c.LastSuccessAt, &c.ConsecutiveFailures); err != nil {
			return nil, eris.Wrap(err, "watermark: scan candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "watermark: iterate candidates")
}

// RecordSuccess advances the watermark after a successful attempt. The period
// only moves forward (GREATEST) and the failure counter resets atomically in
// the same statement. A nil period records the success time without touching
// last_period (unchanged or empty-content confirmations).
func (s *Store) RecordSuccess(ctx context.Context, table string, entityID int64, period *time.Time, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_data.extraction_watermarks
		   (table_name, entity_id, last_period, last_success_at, consecutive_failures, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $4)
		 ON CONFLICT (table_name, entity_id) DO UPDATE SET
		   last_period = GREATEST(market_data.extraction_watermarks.last_period, EXCLUDED.last_period),
		   last_success_at = EXCLUDED.last_success_at,
		   consecutive_failures = 0,
		   updated_at = EXCLUDED.updated_at`,
		table, entityID, period, at,
	)
	if err != nil {
		return eris.Wrapf(err, "watermark: record success for %s entity %d", table, entityID)
	}
	return nil
}

// RecordFailure increments the consecutive-failure counter. Once the counter
// reaches the configured ceiling the entity drops out of GetDue until an
// operator resets it.
func (s *Store) RecordFailure(ctx context.Context, table string, entityID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO market_data.extraction_watermarks
		   (table_name, entity_id, consecutive_failures, updated_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (table_name, entity_id) DO UPDATE SET
		   consecutive_failures = market_data.extraction_watermarks.consecutive_failures + 1,
		   updated_at = EXCLUDED.updated_at`,
		table, entityID, at,
	)
	if err != nil {
		return eris.Wrapf(err, "watermark: record failure for %s entity %d", table, entityID)
	}
	return nil
}

// Reset clears the failure counter for one entity, re-admitting it to
// scheduling. Returns an error if no watermark exists.
func (s *Store) Reset(ctx context.Context, table string, entityID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE market_data.extraction_watermarks
		 SET consecutive_failures = 0, updated_at = now()
		 WHERE table_name = $1 AND entity_id = $2`,
		table, entityID,
	)
	if err != nil {
		return eris.Wrapf(err, "watermark: reset %s entity %d", table, entityID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("watermark: no watermark for %s entity %d", table, entityID)
	}
	return nil
}

// Get returns the watermark for one entity, or nil when none exists yet.
func (s *Store) Get(ctx context.Context, table string, entityID int64) (*Watermark, error) {
	var w Watermark
	err := s.pool.QueryRow(ctx,
		`SELECT table_name, entity_id, last_period, last_success_at, consecutive_failures, updated_at
		 FROM market_data.extraction_watermarks
		 WHERE table_name = $1 AND entity_id = $2`,
		table, entityID,
	).Scan(&w.TableName, &w.EntityID, &w.LastPeriod, &w.LastSuccessAt, &w.ConsecutiveFailures, &w.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "watermark: get %s entity %d", table, entityID)
	}
	return &w, nil
}

// SuspendedEntity is an entity excluded from scheduling by the circuit
// breaker, for the operator-facing report.
type SuspendedEntity struct {
	EntityID            int64      `json:"entity_id"`
	Symbol              string     `json:"symbol"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
}

// ListSuspended returns entities at or above the failure ceiling for a table.
func (s *Store) ListSuspended(ctx context.Context, table string, ceiling int) ([]SuspendedEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.entity_id, e.symbol, w.consecutive_failures, w.last_success_at
		 FROM market_data.extraction_watermarks w
		 JOIN market_data.entities e ON e.entity_id = w.entity_id
		 WHERE w.table_name = $1 AND w.consecutive_failures >= $2
		 ORDER BY e.symbol`,
		table, ceiling,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "watermark: list suspended for %s", table)
	}
	defer rows.Close()

	var out []SuspendedEntity
	for rows.Next() {
		var se SuspendedEntity
		if err := rows.Scan(&se.EntityID, &se.Symbol, &se.ConsecutiveFailures, &se.LastSuccessAt); err != nil {
			return nil, eris.Wrap(err, "watermark: scan suspended")
		}
		out = append(out, se)
	}
	return out, eris.Wrap(rows.Err(), "watermark: iterate suspended")
}

// Summarize counts active entities per freshness state for one table.
func (s *Store) Summarize(ctx context.Context, table string, asOf time.Time, staleness time.Duration, ceiling int) (*Summary, error) {
	sum := &Summary{Table: table}
	err := s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE w.last_success_at IS NULL AND COALESCE(w.consecutive_failures, 0) < $3),
		   COUNT(*) FILTER (WHERE w.last_success_at >= $2 AND w.consecutive_failures < $3),
		   COUNT(*) FILTER (WHERE w.last_success_at < $2 AND w.consecutive_failures < $3),
		   COUNT(*) FILTER (WHERE COALESCE(w.consecutive_failures, 0) >= $3)
		 FROM market_data.entities e
		 LEFT JOIN market_data.extraction_watermarks w
		   ON w.entity_id = e.entity_id AND w.table_name = $1
		 WHERE LOWER(e.status) = 'active'`,
		table, asOf.Add(-staleness), ceiling,
	).Scan(&sum.Never, &sum.Fresh, &sum.Stale, &sum.Suspended)
	if err != nil {
		return nil, eris.Wrapf(err, "watermark: summarize %s", table)
	}
	return sum, nil
}

// FreshnessRow is one row of the per-entity freshness view exposed by the
// read API.
type FreshnessRow struct {
	Symbol              string     `json:"symbol"`
	LastPeriod          *time.Time `json:"last_period,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// ListFreshness returns per-entity freshness for a table, stalest first.
func (s *Store) ListFreshness(ctx context.Context, table string, limit int) ([]FreshnessRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT e.symbol, w.last_period, w.last_success_at, w.consecutive_failures
		 FROM market_data.extraction_watermarks w
		 JOIN market_data.entities e ON e.entity_id = w.entity_id
		 WHERE w.table_name = $1
		 ORDER BY w.last_success_at ASC NULLS FIRST, e.symbol ASC
		 LIMIT $2`,
		table, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "watermark: list freshness for %s", table)
	}
	defer rows.Close()

	var out []FreshnessRow
	for rows.Next() {
		var fr FreshnessRow
		if err := rows.Scan(&fr.Symbol, &fr.LastPeriod, &fr.LastSuccessAt, &fr.ConsecutiveFailures); err != nil {
			return nil, eris.Wrap(err, "watermark: scan freshness")
		}
		out = append(out, fr)
	}
	return out, eris.Wrap(rows.Err(), "watermark: iterate freshness")
}
