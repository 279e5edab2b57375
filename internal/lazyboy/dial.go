package lazyboy

import (
	"context"

	"github.com/dmitrijs2005/lazyboy/internal/config"
	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/dmitrijs2005/lazyboy/internal/store/couch"
	"github.com/dmitrijs2005/lazyboy/internal/store/memory"
	"github.com/dmitrijs2005/lazyboy/internal/store/postgres"
)

// Dialer opens the store connection described by a Config.
type Dialer func(ctx context.Context, cfg config.Config) (store.Connection, error)

// NewDialer returns a Dialer for cfg.Backend. views answer index queries on
// the memory and postgres backends; CouchDB runs its own.
func NewDialer(views store.ViewFuncs, logger logging.Logger) Dialer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(ctx context.Context, cfg config.Config) (store.Connection, error) {
		switch cfg.Backend {
		case config.BackendMemory:
			return memory.NewConnection(views), nil
		case config.BackendPostgres:
			return postgres.Open(ctx, cfg.DatabaseDSN, views, logger)
		default:
			return couch.NewConnection(cfg.Host, cfg.Port,
				couch.WithCredentials(cfg.Username, cfg.Password),
				couch.WithTimeout(cfg.RequestTimeout),
				couch.WithLogger(logger),
			)
		}
	}
}
