package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/datadojo/partrank/internal/store"
)

// initStore opens the results store named by the config.
func initStore(ctx context.Context, readOnly bool) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "partrank.db"
		}
		return store.NewSQLite(dsn, readOnly)
	case "postgres":
		poolCfg := &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg, readOnly)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
