package db

import (
	"context"
	"fmt"

	"github.com/atharvakonge/paper-trader/internal/config"
	"github.com/atharvakonge/paper-trader/internal/logger"
)

// Open builds the Store selected by cfg.AccessMode and applies the schema when
// cfg.Migrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (Store, error) {
	switch cfg.AccessMode {
	case config.AccessSQL:
		conn, err := Connect(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := Migrate(ctx, conn); err != nil {
				conn.Close()
				return nil, err
			}
		}
		return NewSQLStore(conn, log), nil

	case config.AccessORM:
		gdb, err := ConnectGorm(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		store := NewGormStore(gdb)
		if cfg.Migrate {
			if err := AutoMigrate(gdb); err != nil {
				store.Close()
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		return store, nil

	case config.AccessMemory:
		log.Warn("Using in-memory store; data is lost on exit", nil)
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown database access mode %q", cfg.AccessMode)
}
