package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-research/market-cli/internal/extract"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()
	j, err := NewSQLite(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	require.NoError(t, j.Migrate(context.Background()))
	return j
}

func passAt(spec string, started time.Time) *extract.PassResult {
	return &extract.PassResult{
		Spec:       spec,
		Table:      "market_data." + spec,
		RunID:      uuid.New(),
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
		Selected:   25,
		Inserted:   100,
		Updated:    4,
		Unchanged:  17,
		Empty:      1,
		Deferred:   2,
		Failed:     1,
	}
}

func TestSQLiteJournal_RoundTrip(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	res := passAt("balance_sheet", time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC))
	require.NoError(t, j.RecordPass(ctx, res))

	passes, err := j.ListPasses(ctx, PassFilter{})
	require.NoError(t, err)
	require.Len(t, passes, 1)

	got := passes[0]
	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, "balance_sheet", got.Spec)
	assert.Equal(t, "market_data.balance_sheet", got.Table)
	assert.True(t, got.StartedAt.Equal(res.StartedAt))
	assert.Equal(t, int64(100), got.Inserted)
	assert.Equal(t, int64(17), got.Unchanged)
	assert.Equal(t, 2, got.Deferred)
	assert.Equal(t, 1, got.Failed)
}

func TestSQLiteJournal_ListNewestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC)
	for i := range 3 {
		require.NoError(t, j.RecordPass(ctx, passAt("daily_prices", base.Add(time.Duration(i)*time.Hour))))
	}

	passes, err := j.ListPasses(ctx, PassFilter{})
	require.NoError(t, err)
	require.Len(t, passes, 3)
	assert.True(t, passes[0].StartedAt.After(passes[1].StartedAt))
	assert.True(t, passes[1].StartedAt.After(passes[2].StartedAt))
}

func TestSQLiteJournal_FilterAndLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, time.August, 25, 6, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordPass(ctx, passAt("balance_sheet", base)))
	require.NoError(t, j.RecordPass(ctx, passAt("daily_prices", base.Add(time.Hour))))
	require.NoError(t, j.RecordPass(ctx, passAt("daily_prices", base.Add(2*time.Hour))))

	passes, err := j.ListPasses(ctx, PassFilter{Spec: "daily_prices"})
	require.NoError(t, err)
	require.Len(t, passes, 2)
	for _, p := range passes {
		assert.Equal(t, "daily_prices", p.Spec)
	}

	passes, err = j.ListPasses(ctx, PassFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, passes, 1)
}

func TestSQLiteJournal_MigrateIdempotent(t *testing.T) {
	j := newTestJournal(t)
	assert.NoError(t, j.Migrate(context.Background()))
}
