package extract

import (
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

// Company overview is a single point-in-time row per entity, replaced in
// place whenever its business content changes.

var overviewColumns = []string{
	"latest_quarter", "name", "sector", "industry", "exchange", "currency",
	"country", "market_capitalization", "pe_ratio", "eps", "dividend_yield",
	"book_value", "beta", "shares_outstanding", "week_52_high", "week_52_low",
}

func overviewTransform(symbol string, payload map[string]any) ([]Record, error) {
	if str(payload, "Symbol") == "" {
		return nil, eris.Errorf("overview: payload for %s has no Symbol", symbol)
	}

	latestQuarter := dateOrZero(str(payload, "LatestQuarter"))
	rec := Record{
		Period: latestQuarter,
		Fields: map[string]any{
			"latest_quarter":        nilIfZero(latestQuarter),
			"name":                  str(payload, "Name"),
			"sector":                str(payload, "Sector"),
			"industry":              str(payload, "Industry"),
			"exchange":              str(payload, "Exchange"),
			"currency":              str(payload, "Currency"),
			"country":               str(payload, "Country"),
			"market_capitalization": numOrNil(str(payload, "MarketCapitalization")),
			"pe_ratio":              numOrNil(str(payload, "PERatio")),
			"eps":                   numOrNil(str(payload, "EPS")),
			"dividend_yield":        numOrNil(str(payload, "DividendYield")),
			"book_value":            numOrNil(str(payload, "BookValue")),
			"beta":                  numOrNil(str(payload, "Beta")),
			"shares_outstanding":    numOrNil(str(payload, "SharesOutstanding")),
			"week_52_high":          numOrNil(str(payload, "52WeekHigh")),
			"week_52_low":           numOrNil(str(payload, "52WeekLow")),
		},
	}
	return []Record{rec}, nil
}

func newOverviewSpec() *TableSpec {
	return &TableSpec{
		Name:        "company_overview",
		Table:       "market_data.company_overview",
		APIFunction: "OVERVIEW",
		Columns:     overviewColumns,
		NaturalKey:  []string{"entity_id"},
		AssetTypes:  []string{"Stock"},
		Rule:        schedule.None{},
		Params:      symbolParams,
		Transform:   overviewTransform,
	}
}
