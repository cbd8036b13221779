// Package store persists the run journal: one row per extraction pass, kept
// for operator inspection and the read API. Postgres is the primary backend;
// SQLite serves air-gapped and local development setups.
package store

import (
	"context"

	"github.com/halcyon-research/market-cli/internal/extract"
)

// PassFilter specifies criteria for listing recorded passes.
type PassFilter struct {
	Spec  string `json:"spec,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Journal defines the persistence interface for the run journal.
type Journal interface {
	// RecordPass appends one completed pass.
	RecordPass(ctx context.Context, res *extract.PassResult) error

	// ListPasses returns recorded passes, newest first.
	ListPasses(ctx context.Context, filter PassFilter) ([]extract.PassResult, error)

	// Migrate creates the journal schema if needed.
	Migrate(ctx context.Context) error

	Close() error
}
