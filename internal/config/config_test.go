package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.RunsDriver)
	assert.Equal(t, "https://www.alphavantage.co/query", cfg.Upstream.BaseURL)
	assert.Equal(t, 1.2, cfg.Upstream.RequestsPerSecond)
	assert.Equal(t, 3, cfg.Upstream.MaxRetries)

	assert.Equal(t, 50, cfg.Extract.BatchSize)
	assert.Equal(t, 4, cfg.Extract.Workers)
	assert.Equal(t, 24, cfg.Extract.StalenessHours)
	assert.Equal(t, 3, cfg.Extract.FailureCeiling)
	assert.Equal(t, 45, cfg.Extract.ReportingLagDays)
	assert.Equal(t, 0.2, cfg.Extract.CoverageFloor)

	assert.Equal(t, 0.75, cfg.Tier.CoreMin)
	assert.Equal(t, 0.40, cfg.Tier.ExtendedMin)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("MARKET_EXTRACT_FAILURE_CEILING", "5")
	t.Setenv("MARKET_UPSTREAM_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Extract.FailureCeiling)
	assert.Equal(t, "from-env", cfg.Upstream.APIKey)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouting", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
}
