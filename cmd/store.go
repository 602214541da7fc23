package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sdg-cli/internal/config"
	"github.com/sells-group/sdg-cli/internal/resilience"
	"github.com/sells-group/sdg-cli/internal/store"
)

// initStore opens and migrates the configured result store. The "none"
// driver returns a nil store.
func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Driver {
	case "none":
		return nil, nil
	case "sqlite", "":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = "sdg.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		retry := resilience.DefaultRetryConfig()
		retry.OnRetry = resilience.RetryLogger("store", "connect")
		st, err = resilience.DoVal(ctx, retry, func(ctx context.Context) (store.Store, error) {
			return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
				MaxConns: c.MaxConns,
				MinConns: c.MinConns,
			})
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
