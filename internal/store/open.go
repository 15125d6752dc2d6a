package store

import (
	"context"
	"fmt"

	"github.com/donaldgifford/flight-price-tracker/internal/config"
)

// Open connects the backend selected by cfg.Driver. The returned func
// releases its resources.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err := NewPostgresStore(ctx, cfg.DSN(), cfg.PoolSize)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverSQLite:
		s, err := NewSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.DriverMemory:
		return NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
