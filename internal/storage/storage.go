// Package storage selects the playlist backend named in configuration.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"playlist-manager/internal/config"
	"playlist-manager/internal/playlist"
	"playlist-manager/internal/storage/bolt"
	"playlist-manager/internal/storage/postgres"
	"playlist-manager/internal/storage/sqlite"
)

// Open returns the configured backend, ready for use. Exactly one backend is
// active per process.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (playlist.Backend, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MaxConnIdleTime: cfg.Postgres.MaxConnIdleTime,
			ConnectTimeout:  cfg.Postgres.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool, logger)
		if err := store.Init(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres: ensure schema: %w", err)
		}
		logger.Info("using postgres storage")
		return store, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite storage", "path", cfg.SQLite.Path)
		return store, nil

	case config.DriverBolt:
		store, err := bolt.Open(cfg.Bolt.Path, cfg.Bolt.Key)
		if err != nil {
			return nil, err
		}
		logger.Info("using bolt storage", "path", cfg.Bolt.Path, "key", cfg.Bolt.Key)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
