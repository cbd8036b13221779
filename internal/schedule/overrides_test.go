package schedule

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	doc := `
tables:
  market_data.daily_prices:
    staleness_hours: 6
    batch_size: 200
  market_data.balance_sheet:
    lag_days: 60
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	o, err := LoadOverrides(path)
	require.NoError(t, err)

	assert.Equal(t, 6*time.Hour, o.Staleness("market_data.daily_prices", 24*time.Hour))
	assert.Equal(t, 200, o.BatchSize("market_data.daily_prices", 50))
	assert.Equal(t, 60, o.LagDays("market_data.balance_sheet", 45))

	// Unset fields and unknown tables fall back to globals.
	assert.Equal(t, 24*time.Hour, o.Staleness("market_data.balance_sheet", 24*time.Hour))
	assert.Equal(t, 45, o.LagDays("market_data.daily_prices", 45))
	assert.Equal(t, 50, o.BatchSize("market_data.cash_flow", 50))
}

func TestLoadOverrides_MissingFile(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, o)
}

func TestLoadOverrides_EmptyPath(t *testing.T) {
	o, err := LoadOverrides("")
	require.NoError(t, err)
	assert.Empty(t, o)
}

func TestLoadOverrides_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: ["), 0o644))

	_, err := LoadOverrides(path)
	assert.Error(t, err)
}
