package extract

import (
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

// Treasury yields are tracked as indicator entities, one per maturity, so
// watermark and circuit-breaker handling work the same as for equities.

// TreasuryMaturities maps indicator symbol to the API maturity parameter.
var TreasuryMaturities = map[string]string{
	"UST3M":  "3month",
	"UST2Y":  "2year",
	"UST5Y":  "5year",
	"UST7Y":  "7year",
	"UST10Y": "10year",
	"UST30Y": "30year",
}

var treasuryColumns = []string{"obs_date", "maturity", "yield_pct"}

func treasuryTransform(symbol string, payload map[string]any) ([]Record, error) {
	maturity, ok := TreasuryMaturities[symbol]
	if !ok {
		return nil, eris.Errorf("treasury: unknown maturity symbol %q", symbol)
	}

	data, ok := payload["data"].([]any)
	if !ok {
		return nil, eris.Errorf("treasury: payload for %s has no data array", symbol)
	}

	out := make([]Record, 0, len(data))
	for _, raw := range data {
		obs, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		obsDate := dateOrZero(str(obs, "date"))
		if obsDate.IsZero() {
			continue
		}
		val := numOrNil(str(obs, "value"))
		if val == nil {
			continue // market holidays report "."
		}
		out = append(out, Record{
			Period: obsDate,
			Fields: map[string]any{
				"obs_date":  obsDate,
				"maturity":  maturity,
				"yield_pct": val,
			},
		})
	}
	return out, nil
}

func newTreasurySpec() *TableSpec {
	return &TableSpec{
		Name:        "treasury_yield",
		Table:       "market_data.treasury_yield",
		APIFunction: "TREASURY_YIELD",
		Columns:     treasuryColumns,
		NaturalKey:  []string{"entity_id", "obs_date"},
		AssetTypes:  []string{"Indicator"},
		Rule:        schedule.DailyLag{Days: 1},
		Params: func(symbol string) map[string]string {
			return map[string]string{
				"interval": "daily",
				"maturity": TreasuryMaturities[symbol],
			}
		},
		Transform: treasuryTransform,
	}
}
