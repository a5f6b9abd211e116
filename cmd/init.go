package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/scoutbase/curator/internal/resilience"
	"github.com/scoutbase/curator/internal/store"
	"github.com/scoutbase/curator/pkg/enrich"
)

// openStore creates the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("no database_url configured (set store.database_url)")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	case "sqlite":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("no database_url configured (set store.database_url to a file path)")
		}
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// enrichClient creates the enrichment client from config.
func enrichClient() enrich.Client {
	var opts []enrich.Option
	if cfg.Enrich.RatePerSec > 0 {
		burst := cfg.Enrich.Burst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, enrich.WithRateLimit(cfg.Enrich.RatePerSec, burst))
	}
	if cfg.Enrich.RetryAttempts > 0 {
		retry := resilience.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Enrich.RetryAttempts
		opts = append(opts, enrich.WithRetry(retry))
	}
	return enrich.NewClient(cfg.Enrich.BaseURL, cfg.Enrich.Key, opts...)
}
