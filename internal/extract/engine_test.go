package extract

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/fingerprint"
	"github.com/halcyon-research/market-cli/internal/schedule"
	"github.com/halcyon-research/market-cli/internal/upstream"
)

// fakeFetcher serves a canned body for every request.
type fakeFetcher struct {
	payload []byte
	err     error
}

func (f *fakeFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.payload)), nil
}

// stubScores implements coverage.Provider with a fixed map.
type stubScores map[int64]float64

func (s stubScores) Scores(ctx context.Context, table string) (map[int64]float64, error) {
	if s == nil {
		return nil, nil
	}
	return map[int64]float64(s), nil
}

func testSpec() *TableSpec {
	return &TableSpec{
		Name:        "treasury_yield",
		Table:       "market_data.treasury_yield",
		APIFunction: "TREASURY_YIELD",
		Columns:     treasuryColumns,
		NaturalKey:  []string{"entity_id", "obs_date"},
		AssetTypes:  []string{"Indicator"},
		Rule:        schedule.None{},
		Params:      symbolParams,
		Transform:   treasuryTransform,
	}
}

func testEngine(t *testing.T, payload []byte, fetchErr error) (pgxmock.PgxPoolIface, *Engine) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	mock.MatchExpectationsInOrder(false)

	reg := &Registry{specs: map[string]*TableSpec{}}
	reg.Register(testSpec())

	client := upstream.New(&fakeFetcher{payload: payload, err: fetchErr}, "https://example.test/query", "demo")
	engine := NewEngine(mock, client, stubScores(nil), reg, Options{
		Workers:        1,
		FailureCeiling: 3,
		Staleness:      24 * time.Hour,
		Thresholds:     catalog.DefaultThresholds,
	})
	return mock, engine
}

func expectDue(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
	mock.ExpectQuery("SELECT e.entity_id, e.symbol, w.last_period").
		WithArgs("market_data.treasury_yield", []string{"Indicator"}, 3, pgxmock.AnyArg(), (*time.Time)(nil)).
		WillReturnRows(rows)
}

func dueRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"entity_id", "symbol", "last_period", "last_success_at", "consecutive_failures"})
}

const treasuryPayload = `{"name":"10-Year","interval":"daily","unit":"percent","data":[{"date":"2026-08-24","value":"4.21"}]}`

func TestRunPass_FirstFetchInserts(t *testing.T) {
	mock, engine := testEngine(t, []byte(treasuryPayload), nil)

	expectDue(mock, dueRows().AddRow(int64(7), "UST10Y", nil, nil, 0))

	// Never landed before.
	mock.ExpectQuery("SELECT content_fingerprint").
		WithArgs("market_data.treasury_yield", int64(7)).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectQuery("INSERT INTO market_data.api_responses_landing").
		WithArgs(int64(7), "market_data.treasury_yield", "TREASURY_YIELD",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "success", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"landing_id"}).AddRow(int64(1)))

	mock.ExpectQuery("INSERT INTO \"market_data\".\"treasury_yield\"").
		WithArgs(int64(7), time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC), "10year", 4.21, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(true))

	// Watermark advances to the max period with failures reset.
	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.treasury_yield", int64(7), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := engine.RunPass(context.Background(), "treasury_yield")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Selected)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Zero(t, res.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPass_UnchangedFingerprintShortCircuits(t *testing.T) {
	mock, engine := testEngine(t, []byte(treasuryPayload), nil)

	payload, err := upstream.Decode([]byte(treasuryPayload))
	require.NoError(t, err)
	fp, err := fingerprint.Response(payload)
	require.NoError(t, err)

	last := time.Now().Add(-48 * time.Hour)
	period := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)
	expectDue(mock, dueRows().AddRow(int64(7), "UST10Y", &period, &last, 0))

	// Prior landing carries the identical fingerprint.
	mock.ExpectQuery("SELECT content_fingerprint").
		WithArgs("market_data.treasury_yield", int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"content_fingerprint"}).AddRow(fp))

	mock.ExpectQuery("INSERT INTO market_data.api_responses_landing").
		WithArgs(int64(7), "market_data.treasury_yield", "TREASURY_YIELD",
			pgxmock.AnyArg(), fp, "success", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"landing_id"}).AddRow(int64(2)))

	// last_success_at still advances; no business-table writes happen.
	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.treasury_yield", int64(7), (*time.Time)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := engine.RunPass(context.Background(), "treasury_yield")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Unchanged)
	assert.Zero(t, res.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPass_ThrottledDefersWithoutFailure(t *testing.T) {
	note := `{"Note":"Thank you for using our API. Our standard API call frequency is 25 requests per day."}`
	mock, engine := testEngine(t, []byte(note), nil)

	expectDue(mock, dueRows().AddRow(int64(7), "UST10Y", nil, nil, 0))

	mock.ExpectQuery("SELECT content_fingerprint").
		WithArgs("market_data.treasury_yield", int64(7)).
		WillReturnError(pgx.ErrNoRows)

	mock.ExpectQuery("INSERT INTO market_data.api_responses_landing").
		WithArgs(int64(7), "market_data.treasury_yield", "TREASURY_YIELD",
			pgxmock.AnyArg(), pgxmock.AnyArg(), "rate_limited", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"landing_id"}).AddRow(int64(3)))

	res, err := engine.RunPass(context.Background(), "treasury_yield")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)
	assert.Zero(t, res.Failed)
	// No watermark expectations: throttling must not touch the failure counter.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPass_FetchErrorRecordsFailure(t *testing.T) {
	mock, engine := testEngine(t, nil, errors.New("connect refused"))

	expectDue(mock, dueRows().AddRow(int64(7), "UST10Y", nil, nil, 2))

	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.treasury_yield", int64(7), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	res, err := engine.RunPass(context.Background(), "treasury_yield")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPass_EmptySelection(t *testing.T) {
	mock, engine := testEngine(t, []byte(treasuryPayload), nil)
	expectDue(mock, dueRows())

	res, err := engine.RunPass(context.Background(), "treasury_yield")
	require.NoError(t, err)
	assert.Zero(t, res.Selected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunPass_UnknownSpec(t *testing.T) {
	_, engine := testEngine(t, nil, nil)
	_, err := engine.RunPass(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(45, schedule.Overrides{})

	names := reg.AllNames()
	assert.Equal(t, []string{
		"balance_sheet", "income_statement", "cash_flow",
		"company_overview", "daily_prices", "treasury_yield",
	}, names)

	spec, err := reg.Get("balance_sheet")
	require.NoError(t, err)
	assert.Equal(t, "market_data.balance_sheet", spec.Table)
	assert.Equal(t, []string{"entity_id", "period_end", "report_type"}, spec.NaturalKey)

	_, err = reg.Get("nope")
	assert.Error(t, err)

	selected, err := reg.Select([]string{"daily_prices"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "TIME_SERIES_DAILY", selected[0].APIFunction)

	all, err := reg.Select(nil)
	require.NoError(t, err)
	assert.Len(t, all, 6)
}
