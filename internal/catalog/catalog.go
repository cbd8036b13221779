// Package catalog maintains the enumerable universe of trackable entities and
// their tier classification.
package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/db"
)

// Entity is one unit of extraction identity: a symbol (or indicator) tracked
// against one target table. Entities are deactivated, never deleted.
type Entity struct {
	EntityID      int64      `json:"entity_id"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name,omitempty"`
	Exchange      string     `json:"exchange,omitempty"`
	AssetType     string     `json:"asset_type"`
	Status        string     `json:"status"`
	IPODate       *time.Time `json:"ipo_date,omitempty"`
	DelistingDate *time.Time `json:"delisting_date,omitempty"`
}

// Store provides access to the entity catalog.
type Store struct {
	pool db.Pool
}

// NewStore creates a catalog store backed by the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

var listingColumns = []string{
	"symbol", "name", "exchange", "asset_type", "ipo_date", "delisting_date", "status",
}

// UpsertListings refreshes the catalog from upstream listing rows. Symbols
// absent from the feed keep their last known row; delistings arrive as
// status='delisted' rows in the feed itself.
func (s *Store) UpsertListings(ctx context.Context, entities []Entity) (int64, error) {
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []any{
			e.Symbol, e.Name, e.Exchange, e.AssetType, e.IPODate, e.DelistingDate, e.Status,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "market_data.entities",
		Columns:      listingColumns,
		ConflictKeys: []string{"symbol"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "catalog: upsert listings")
	}
	return n, nil
}

// FindBySymbol returns the entity for a symbol, or nil when unknown.
func (s *Store) FindBySymbol(ctx context.Context, symbol string) (*Entity, error) {
	var e Entity
	err := s.pool.QueryRow(ctx,
		`SELECT entity_id, symbol, name, exchange, asset_type, status, ipo_date, delisting_date
		 FROM market_data.entities WHERE symbol = $1`,
		symbol,
	).Scan(&e.EntityID, &e.Symbol, &e.Name, &e.Exchange, &e.AssetType, &e.Status, &e.IPODate, &e.DelistingDate)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: find symbol %s", symbol)
	}
	return &e, nil
}

// CountActive returns the number of active entities, optionally restricted to
// one asset type.
func (s *Store) CountActive(ctx context.Context, assetType string) (int, error) {
	query := `SELECT COUNT(*) FROM market_data.entities WHERE LOWER(status) = 'active'`
	args := []any{}
	if assetType != "" {
		query += ` AND asset_type = $1`
		args = append(args, assetType)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "catalog: count active")
	}
	return n, nil
}

// EnsureIndicator registers a non-equity entity (e.g. a Treasury maturity)
// so watermark tracking works for indicator tables too. Idempotent.
func (s *Store) EnsureIndicator(ctx context.Context, symbol, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO market_data.entities (symbol, name, asset_type, status)
		 VALUES ($1, $2, 'Indicator', 'active')
		 ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name
		 RETURNING entity_id`,
		symbol, name,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "catalog: ensure indicator %s", symbol)
	}
	return id, nil
}
