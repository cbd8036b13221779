// Package extract orchestrates incremental extraction passes: selecting due
// entities, fetching from upstream, landing raw payloads, and applying
// fingerprint-guarded upserts to the business tables.
package extract

import (
	"time"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

// Record is one transformed business row bound for a target table. Fields is
// keyed by column name and carries business content only; the engine supplies
// entity_id and content_fingerprint.
type Record struct {
	// Period is the business period this row covers, used to advance the
	// watermark. Zero for period-less rows.
	Period time.Time
	Fields map[string]any
}

// TransformFunc converts a decoded upstream payload into business rows.
// It must be a pure function of its inputs.
type TransformFunc func(symbol string, payload map[string]any) ([]Record, error)

// TableSpec describes one extraction target: which API function feeds it,
// how its rows are keyed, and how payloads become rows.
type TableSpec struct {
	// Name is the registry identifier, e.g. "balance_sheet".
	Name string
	// Table is the fully qualified target, e.g. "market_data.balance_sheet".
	Table string
	// APIFunction is the upstream function name, e.g. "BALANCE_SHEET".
	APIFunction string
	// Columns lists the business columns in insert order. Every Record's
	// Fields map is read in this order.
	Columns []string
	// NaturalKey is the conflict key, entity_id included.
	NaturalKey []string
	// AssetTypes restricts which catalog entities feed this table.
	AssetTypes []string
	// Rule derives the latest period assumed available upstream.
	Rule schedule.PeriodRule
	// Params builds extra query parameters for an entity's symbol.
	Params func(symbol string) map[string]string
	// Transform converts one payload into zero or more Records.
	Transform TransformFunc
}

// MaxPeriod returns the latest period across records, or zero when none
// carries one.
func MaxPeriod(records []Record) time.Time {
	var max time.Time
	for _, r := range records {
		if r.Period.After(max) {
			max = r.Period
		}
	}
	return max
}
