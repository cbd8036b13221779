package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/halcyon-research/market-cli/internal/catalog"
	"github.com/halcyon-research/market-cli/internal/coverage"
	"github.com/halcyon-research/market-cli/internal/extract"
	"github.com/halcyon-research/market-cli/internal/fetcher"
	"github.com/halcyon-research/market-cli/internal/schedule"
	"github.com/halcyon-research/market-cli/internal/store"
	"github.com/halcyon-research/market-cli/internal/upstream"
)

// marketPool creates a pgxpool.Pool against the market_data database.
func marketPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := cfg.Store.DatabaseURL
	if dsn == "" {
		return nil, eris.New("no database_url configured (set store.database_url or MARKET_STORE_DATABASE_URL)")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}

	fmt.Println("Connected to database")
	return pool, nil
}

// upstreamClient builds the market API client with the configured adaptive
// rate limit for its host.
func upstreamClient() *upstream.Client {
	limiters := map[string]*fetcher.AdaptiveLimiter{}
	if u, err := url.Parse(cfg.Upstream.BaseURL); err == nil {
		limiters[u.Host] = fetcher.NewAdaptiveLimiter(
			rate.Limit(cfg.Upstream.RequestsPerSecond), cfg.Upstream.Burst)
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Upstream.UserAgent,
		Timeout:      time.Duration(cfg.Upstream.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Upstream.MaxRetries,
		RateLimiters: limiters,
	})
	return upstream.New(f, cfg.Upstream.BaseURL, cfg.Upstream.APIKey)
}

// buildRegistry loads schedule overrides and constructs the spec registry.
func buildRegistry() (*extract.Registry, schedule.Overrides, error) {
	overrides, err := schedule.LoadOverrides(cfg.Extract.SchedulesFile)
	if err != nil {
		return nil, nil, err
	}
	return extract.NewRegistry(cfg.Extract.ReportingLagDays, overrides), overrides, nil
}

// buildEngine wires the full extraction engine.
func buildEngine(pool *pgxpool.Pool) (*extract.Engine, *extract.Registry, error) {
	reg, overrides, err := buildRegistry()
	if err != nil {
		return nil, nil, err
	}

	engine := extract.NewEngine(pool, upstreamClient(), coverage.NewPostgresProvider(pool), reg, extract.Options{
		BatchSize:      cfg.Extract.BatchSize,
		Workers:        cfg.Extract.Workers,
		Staleness:      time.Duration(cfg.Extract.StalenessHours) * time.Hour,
		FailureCeiling: cfg.Extract.FailureCeiling,
		CoverageFloor:  cfg.Extract.CoverageFloor,
		Thresholds: catalog.Thresholds{
			CoreMin:     cfg.Tier.CoreMin,
			ExtendedMin: cfg.Tier.ExtendedMin,
		},
		Overrides: overrides,
	})
	return engine, reg, nil
}

// openJournal opens the run journal per store.runs_driver.
func openJournal(ctx context.Context, pool *pgxpool.Pool) (store.Journal, error) {
	switch cfg.Store.RunsDriver {
	case "", "postgres":
		return store.NewPostgres(pool), nil
	case "sqlite":
		j, err := store.NewSQLite(cfg.Store.RunsPath)
		if err != nil {
			return nil, err
		}
		if err := j.Migrate(ctx); err != nil {
			j.Close()
			return nil, err
		}
		return j, nil
	default:
		return nil, eris.Errorf("unknown runs_driver %q (want postgres or sqlite)", cfg.Store.RunsDriver)
	}
}
