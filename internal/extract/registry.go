package extract

import (
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

// Registry maps table spec names to their definitions.
type Registry struct {
	specs map[string]*TableSpec
	order []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with every extraction target.
// lagDays is the global reporting lag for quarterly statements; overrides may
// tune it per table.
func NewRegistry(lagDays int, overrides schedule.Overrides) *Registry {
	r := &Registry{specs: make(map[string]*TableSpec)}

	lag := func(table string) int { return overrides.LagDays(table, lagDays) }

	r.Register(newStatementSpec("balance_sheet", "market_data.balance_sheet",
		"BALANCE_SHEET", balanceSheetFields, balanceSheetOrder, lag("market_data.balance_sheet")))
	r.Register(newStatementSpec("income_statement", "market_data.income_statement",
		"INCOME_STATEMENT", incomeStatementFields, incomeStatementOrder, lag("market_data.income_statement")))
	r.Register(newStatementSpec("cash_flow", "market_data.cash_flow",
		"CASH_FLOW", cashFlowFields, cashFlowOrder, lag("market_data.cash_flow")))
	r.Register(newOverviewSpec())
	r.Register(newDailyPricesSpec())
	r.Register(newTreasurySpec())

	return r
}

// Register adds a spec to the registry.
func (r *Registry) Register(s *TableSpec) {
	r.specs[s.Name] = s
	r.order = append(r.order, s.Name)
}

// Get returns a spec by name.
func (r *Registry) Get(name string) (*TableSpec, error) {
	s, ok := r.specs[name]
	if !ok {
		return nil, eris.Errorf("extract: unknown table spec %q", name)
	}
	return s, nil
}

// Select returns the named specs, or all specs when names is empty, in
// registration order.
func (r *Registry) Select(names []string) ([]*TableSpec, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	var out []*TableSpec
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// All returns all specs in registration order.
func (r *Registry) All() []*TableSpec {
	out := make([]*TableSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// AllNames returns all registered spec names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
