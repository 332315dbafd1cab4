package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tendersync/internal/ingest"
	"github.com/sells-group/tendersync/internal/resolve"
	"github.com/sells-group/tendersync/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tendersync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initMigratedStore opens the store and applies schema migrations.
func initMigratedStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func newPipeline(st store.Store) *ingest.Pipeline {
	return ingest.NewPipeline(st, ingest.WithConcurrency(cfg.Ingest.Concurrency))
}

func newResolver(st store.Store) *resolve.Resolver {
	var extra []resolve.Strategy
	if cfg.Resolver.EnableRegex {
		extra = append(extra, &resolve.RegexStrategy{})
	}
	if cfg.Resolver.EnableFuzzy {
		extra = append(extra, resolve.FuzzyStrategy{})
	}
	return resolve.NewResolver(st, resolve.WithStrategies(extra...))
}
