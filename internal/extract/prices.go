package extract

import (
	"github.com/rotisserie/eris"

	"github.com/halcyon-research/market-cli/internal/schedule"
)

var dailyPriceColumns = []string{
	"trade_date", "open", "high", "low", "close", "volume",
}

// dailyPricesTransform flattens the "Time Series (Daily)" map into one row
// per trading day.
func dailyPricesTransform(symbol string, payload map[string]any) ([]Record, error) {
	series, ok := payload["Time Series (Daily)"].(map[string]any)
	if !ok {
		return nil, eris.Errorf("prices: payload for %s has no daily series", symbol)
	}

	out := make([]Record, 0, len(series))
	for dateStr, raw := range series {
		bar, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		tradeDate := dateOrZero(dateStr)
		if tradeDate.IsZero() {
			return nil, eris.Errorf("prices: bad trade date %q for %s", dateStr, symbol)
		}
		out = append(out, Record{
			Period: tradeDate,
			Fields: map[string]any{
				"trade_date": tradeDate,
				"open":       numOrNil(str(bar, "1. open")),
				"high":       numOrNil(str(bar, "2. high")),
				"low":        numOrNil(str(bar, "3. low")),
				"close":      numOrNil(str(bar, "4. close")),
				"volume":     numOrNil(str(bar, "5. volume")),
			},
		})
	}
	return out, nil
}

func newDailyPricesSpec() *TableSpec {
	return &TableSpec{
		Name:        "daily_prices",
		Table:       "market_data.daily_prices",
		APIFunction: "TIME_SERIES_DAILY",
		Columns:     dailyPriceColumns,
		NaturalKey:  []string{"entity_id", "trade_date"},
		AssetTypes:  []string{"Stock", "ETF"},
		Rule:        schedule.DailyLag{Days: 1},
		Params: func(symbol string) map[string]string {
			return map[string]string{"symbol": symbol, "outputsize": "compact"}
		},
		Transform: dailyPricesTransform,
	}
}
