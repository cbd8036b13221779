package watermark

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock, NewStore(mock)
}

func TestGetDue_OrderingAndFilters(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)
	expected := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	lastSuccess := now.Add(-72 * time.Hour)

	mock.ExpectQuery("SELECT e.entity_id, e.symbol, w.last_period").
		WithArgs("market_data.balance_sheet", []string{"Stock"}, 3, now.Add(-24*time.Hour), &expected).
		WillReturnRows(pgxmock.NewRows([]string{"entity_id", "symbol", "last_period", "last_success_at", "consecutive_failures"}).
			AddRow(int64(7), "AAA", nil, nil, 0).
			AddRow(int64(9), "BBB", &expected, &lastSuccess, 1))

	got, err := s.GetDue(context.Background(), "market_data.balance_sheet", now, DueOptions{
		Staleness:      24 * time.Hour,
		FailureCeiling: 3,
		ExpectedPeriod: expected,
		AssetTypes:     []string{"Stock"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].EntityID)
	assert.Nil(t, got[0].LastSuccessAt)
	assert.Equal(t, 1, got[1].ConsecutiveFailures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDue_Limit(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT e.entity_id, e.symbol, w.last_period").
		WithArgs("market_data.daily_prices", []string{"Stock", "ETF", "Indicator"}, 3, pgxmock.AnyArg(), (*time.Time)(nil), 10).
		WillReturnRows(pgxmock.NewRows([]string{"entity_id", "symbol", "last_period", "last_success_at", "consecutive_failures"}))

	got, err := s.GetDue(context.Background(), "market_data.daily_prices", now, DueOptions{
		Staleness:      time.Hour,
		FailureCeiling: 3,
		Limit:          10,
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSuccess_WithPeriod(t *testing.T) {
	mock, s := newMockStore(t)
	period := time.Date(2026, time.June, 30, 0, 0, 0, 0, time.UTC)
	at := time.Date(2026, time.August, 25, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.balance_sheet", int64(7), &period, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordSuccess(context.Background(), "market_data.balance_sheet", 7, &period, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSuccess_NilPeriod(t *testing.T) {
	mock, s := newMockStore(t)
	at := time.Now().UTC()

	// Unchanged and empty confirmations advance last_success_at only.
	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.company_overview", int64(3), (*time.Time)(nil), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordSuccess(context.Background(), "market_data.company_overview", 3, nil, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailure(t *testing.T) {
	mock, s := newMockStore(t)
	at := time.Now().UTC()

	mock.ExpectExec("INSERT INTO market_data.extraction_watermarks").
		WithArgs("market_data.cash_flow", int64(5), at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordFailure(context.Background(), "market_data.cash_flow", 5, at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE market_data.extraction_watermarks").
		WithArgs("market_data.balance_sheet", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.Reset(context.Background(), "market_data.balance_sheet", 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReset_NoWatermark(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectExec("UPDATE market_data.extraction_watermarks").
		WithArgs("market_data.balance_sheet", int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Reset(context.Background(), "market_data.balance_sheet", 404)
	assert.Error(t, err)
}

func TestGet_NotFound(t *testing.T) {
	mock, s := newMockStore(t)

	mock.ExpectQuery("SELECT table_name, entity_id, last_period").
		WithArgs("market_data.balance_sheet", int64(1)).
		WillReturnError(pgx.ErrNoRows)

	w, err := s.Get(context.Background(), "market_data.balance_sheet", 1)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestSummarize(t *testing.T) {
	mock, s := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT").
		WithArgs("market_data.balance_sheet", now.Add(-24*time.Hour), 3).
		WillReturnRows(pgxmock.NewRows([]string{"never", "fresh", "stale", "suspended"}).
			AddRow(100, 250, 40, 7))

	sum, err := s.Summarize(context.Background(), "market_data.balance_sheet", now, 24*time.Hour, 3)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Table: "market_data.balance_sheet", Never: 100, Fresh: 250, Stale: 40, Suspended: 7}, sum)
}

func TestListSuspended(t *testing.T) {
	mock, s := newMockStore(t)
	last := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT e.entity_id, e.symbol, w.consecutive_failures").
		WithArgs("market_data.balance_sheet", 3).
		WillReturnRows(pgxmock.NewRows([]string{"entity_id", "symbol", "consecutive_failures", "last_success_at"}).
			AddRow(int64(7), "BAD", 3, &last).
			AddRow(int64(8), "WORSE", 5, nil))

	got, err := s.ListSuspended(context.Background(), "market_data.balance_sheet", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "BAD", got[0].Symbol)
	assert.Nil(t, got[1].LastSuccessAt)
}
