package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyPayload = `{
	"Meta Data": {"2. Symbol": "IBM"},
	"Time Series (Daily)": {
		"2026-08-24": {"1. open": "184.50", "2. high": "186.10", "3. low": "183.90", "4. close": "185.75", "5. volume": "3214500"},
		"2026-08-21": {"1. open": "182.00", "2. high": "184.80", "3. low": "181.60", "4. close": "184.20", "5. volume": "2987100"}
	}
}`

func TestDailyPricesTransform(t *testing.T) {
	records, err := dailyPricesTransform("IBM", decodeJSON(t, dailyPayload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	byDate := map[time.Time]Record{}
	for _, r := range records {
		byDate[r.Period] = r
	}

	aug24 := byDate[time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)]
	require.NotNil(t, aug24.Fields)
	assert.Equal(t, 185.75, aug24.Fields["close"])
	assert.Equal(t, 3214500.0, aug24.Fields["volume"])
	assert.Equal(t, aug24.Period, aug24.Fields["trade_date"])
}

func TestDailyPricesTransform_NoSeries(t *testing.T) {
	_, err := dailyPricesTransform("IBM", decodeJSON(t, `{"Meta Data": {}}`))
	assert.Error(t, err)
}

func TestTreasuryTransform(t *testing.T) {
	payload := decodeJSON(t, `{
		"name": "10-Year Treasury Constant Maturity Rate",
		"interval": "daily",
		"unit": "percent",
		"data": [
			{"date": "2026-08-24", "value": "4.21"},
			{"date": "2026-08-23", "value": "."},
			{"date": "2026-08-22", "value": "4.18"}
		]
	}`)

	records, err := treasuryTransform("UST10Y", payload)
	require.NoError(t, err)
	require.Len(t, records, 2) // "." observations dropped

	assert.Equal(t, 4.21, records[0].Fields["yield_pct"])
	assert.Equal(t, "10year", records[0].Fields["maturity"])
	assert.Equal(t, time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), records[0].Period)
}

func TestTreasuryTransform_UnknownMaturity(t *testing.T) {
	_, err := treasuryTransform("UST99Y", decodeJSON(t, `{"data": []}`))
	assert.Error(t, err)
}

func TestOverviewTransform(t *testing.T) {
	payload := decodeJSON(t, `{
		"Symbol": "IBM",
		"Name": "International Business Machines",
		"Sector": "TECHNOLOGY",
		"LatestQuarter": "2026-06-30",
		"MarketCapitalization": "170000000000",
		"PERatio": "22.4",
		"DividendYield": "0.035",
		"52WeekHigh": "199.18",
		"EPS": "None"
	}`)

	records, err := overviewTransform("IBM", payload)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC), rec.Period)
	assert.Equal(t, "International Business Machines", rec.Fields["name"])
	assert.Equal(t, 170000000000.0, rec.Fields["market_capitalization"])
	assert.Equal(t, 199.18, rec.Fields["week_52_high"])
	assert.Nil(t, rec.Fields["eps"])
}

func TestOverviewTransform_NoSymbol(t *testing.T) {
	_, err := overviewTransform("IBM", decodeJSON(t, `{"Name": "x"}`))
	assert.Error(t, err)
}
