package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/halcyon-research/market-cli/internal/watermark"
)

type stubSummarizer struct {
	summaries map[string]*watermark.Summary
	suspended map[string][]watermark.SuspendedEntity
}

func (s *stubSummarizer) Summarize(ctx context.Context, table string, asOf time.Time, staleness time.Duration, ceiling int) (*watermark.Summary, error) {
	return s.summaries[table], nil
}

func (s *stubSummarizer) ListSuspended(ctx context.Context, table string, ceiling int) ([]watermark.SuspendedEntity, error) {
	return s.suspended[table], nil
}

func TestWriteFreshnessWorkbook(t *testing.T) {
	src := &stubSummarizer{
		summaries: map[string]*watermark.Summary{
			"market_data.balance_sheet": {Table: "market_data.balance_sheet", Never: 5, Fresh: 90, Stale: 3, Suspended: 2},
		},
		suspended: map[string][]watermark.SuspendedEntity{
			"market_data.balance_sheet": {
				{EntityID: 4, Symbol: "DEADCO", ConsecutiveFailures: 3},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "freshness.xlsx")
	err := WriteFreshnessWorkbook(context.Background(), src, path, Options{
		Tables:         []string{"market_data.balance_sheet"},
		Staleness:      24 * time.Hour,
		FailureCeiling: 3,
		AsOf:           time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	summary := f.Sheets[0]
	assert.Equal(t, "Freshness", summary.Name)
	assert.Equal(t, "market_data.balance_sheet", summary.Rows[1].Cells[0].String())
	assert.Equal(t, "90", summary.Rows[1].Cells[2].String())

	suspended := f.Sheets[1]
	assert.Equal(t, "Suspended", suspended.Name)
	require.True(t, len(suspended.Rows) >= 2)
	assert.Equal(t, "DEADCO", suspended.Rows[1].Cells[1].String())
	assert.Equal(t, "never", suspended.Rows[1].Cells[3].String())
}
