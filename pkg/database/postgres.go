package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/field-tools/pkg/config"
)

// DB is the connection pool of the configuration store.
type DB struct {
	*pgxpool.Pool
}

// NewConnection opens a pool to connURL sized by the limits in cfg and pings it.
// connURL is passed separately so tests can point at a container while
// keeping the configured limits.
func NewConnection(ctx context.Context, connURL string, cfg *config.DatabaseConfig) (*DB, error) {
	poolCfg, err := poolConfig(connURL, cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig parses connURL and applies the pool limits of cfg.
// A zero limit keeps what pgx derived from the URL.
func poolConfig(connURL string, cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	return poolCfg, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
