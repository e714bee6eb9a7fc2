// Package storage selects and opens the List Store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/favorites/internal/domain/favorites"
	"github.com/Togather-Foundation/favorites/internal/metrics"
	"github.com/Togather-Foundation/favorites/internal/storage/memory"
	"github.com/Togather-Foundation/favorites/internal/storage/postgres"
	"github.com/Togather-Foundation/favorites/internal/storage/sqlite"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Store is a List Store with the lifecycle hooks the server needs.
type Store interface {
	favorites.Repository
	Ping(ctx context.Context) error
	Close() error
}

// Options selects a backend.
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	AutoMigrate bool
}

// Opened is an open backend plus the pool statistics source for metrics,
// which is nil for the memory store.
type Opened struct {
	Store Store
	Stats metrics.StatsFunc
}

// Open connects to the configured backend. SQLite always applies its
// embedded migrations; Postgres does so only with AutoMigrate.
func Open(ctx context.Context, opts Options) (*Opened, error) {
	switch opts.Driver {
	case DriverPostgres:
		if opts.AutoMigrate {
			if err := postgres.MigrateUp(opts.DatabaseURL); err != nil {
				return nil, err
			}
		}
		pool, err := postgres.Connect(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		repo, err := postgres.NewListRepository(pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &Opened{Store: repo, Stats: metrics.PgxPoolStats(pool)}, nil
	case DriverSQLite:
		store, err := sqlite.Open(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: store, Stats: metrics.SQLDBStats(store.DB())}, nil
	case DriverMemory:
		return &Opened{Store: memory.NewStore()}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}
