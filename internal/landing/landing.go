// Package landing persists raw upstream responses verbatim before any
// transformation. The log is append-only; rows are never updated or deleted,
// so replays and audits always have the original payload.
package landing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/db"
)

// Status classifies one upstream response at landing time.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusEmpty       Status = "empty"
	StatusRateLimited Status = "rate_limited"
	StatusError       Status = "error"
)

// Record is one landed upstream response.
type Record struct {
	LandingID          int64     `json:"landing_id"`
	EntityID           int64     `json:"entity_id"`
	TableName          string    `json:"table_name"`
	APIFunction        string    `json:"api_function"`
	Payload            []byte    `json:"-"`
	ContentFingerprint string    `json:"content_fingerprint"`
	ResponseStatus     Status    `json:"response_status"`
	RunID              uuid.UUID `json:"run_id"`
	FetchedAt          time.Time `json:"fetched_at"`
}

// Store appends to and reads from market_data.api_responses_landing.
type Store struct {
	pool db.Pool
}

// NewStore creates a landing store backed by the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// Append lands one response and returns its landing_id. Payload must be the
// raw upstream bytes, untouched.
func (s *Store) Append(ctx context.Context, r Record) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO market_data.api_responses_landing
		   (entity_id, table_name, api_function, payload, content_fingerprint, response_status, run_id, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING landing_id`,
		r.EntityID, r.TableName, r.APIFunction, r.Payload, r.ContentFingerprint, string(r.ResponseStatus), r.RunID, r.FetchedAt,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "landing: append %s for entity %d", r.APIFunction, r.EntityID)
	}
	return id, nil
}

// LastSuccessFingerprint returns the fingerprint of the most recent
// successfully landed response for an entity and table, or "" when none
// exists. Used to short-circuit transformation of byte-identical responses.
func (s *Store) LastSuccessFingerprint(ctx context.Context, table string, entityID int64) (string, error) {
	var fp string
	err := s.pool.QueryRow(ctx,
		`SELECT content_fingerprint
		 FROM market_data.api_responses_landing
		 WHERE table_name = $1 AND entity_id = $2 AND response_status = 'success'
		 ORDER BY fetched_at DESC, landing_id DESC
		 LIMIT 1`,
		table, entityID,
	).Scan(&fp)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "landing: last fingerprint for %s entity %d", table, entityID)
	}
	return fp, nil
}

// Latest returns the most recent landed record for an entity and table
// regardless of status, or nil when none exists. Payload is included.
func (s *Store) Latest(ctx context.Context, table string, entityID int64) (*Record, error) {
	var r Record
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT landing_id, entity_id, table_name, api_function, payload,
		        content_fingerprint, response_status, run_id, fetched_at
		 FROM market_data.api_responses_landing
		 WHERE table_name = $1 AND entity_id = $2
		 ORDER BY fetched_at DESC, landing_id DESC
		 LIMIT 1`,
		table, entityID,
	).Scan(&r.LandingID, &r.EntityID, &r.TableName, &r.APIFunction, &r.Payload,
		&r.ContentFingerprint, &status, &r.RunID, &r.FetchedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "landing: latest for %s entity %d", table, entityID)
	}
	r.ResponseStatus = Status(status)
	return &r, nil
}

// CountByStatus returns landed-response counts per status for one run.
func (s *Store) CountByStatus(ctx context.Context, runID uuid.UUID) (map[Status]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT response_status, COUNT(*)
		 FROM market_data.api_responses_landing
		 WHERE run_id = $1
		 GROUP BY response_status`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "landing: counts for run %s", runID)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "landing: scan count")
		}
		counts[Status(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "landing: iterate counts")
}
