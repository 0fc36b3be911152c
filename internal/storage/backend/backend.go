// Package backend opens the configured indexer trade store.
package backend

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"market-chart-lab/internal/config"
	"market-chart-lab/internal/storage"
	chstore "market-chart-lab/internal/storage/clickhouse"
	"market-chart-lab/internal/storage/memory"
	"market-chart-lab/internal/storage/migrations"
	pgstore "market-chart-lab/internal/storage/postgres"
)

// Access says whether the caller writes to the indexer.
type Access int

const (
	// ReadOnly is for processes that only query history. Postgres enforces it
	// per session unless the schema is being migrated.
	ReadOnly Access = iota
	ReadWrite
)

// String returns the access mode name used in logs.
func (a Access) String() string {
	if a == ReadWrite {
		return "read-write"
	}
	return "read-only"
}

// Open connects to the backend named by cfg. With cfg.Migrate the embedded
// schema is applied; otherwise the existing trade table is verified. The
// returned cleanup closes the connection.
func Open(ctx context.Context, cfg config.IndexerConfig, access Access, logger zerolog.Logger) (storage.TradeStore, func(), error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Info().Str("backend", "memory").Msg("using in-memory indexer store")
		return memory.NewTradeStore(), func() {}, nil

	case migrations.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, &pgstore.PoolOptions{
			MaxConns: cfg.PostgresMaxConns,
			ReadOnly: access == ReadOnly && !cfg.Migrate,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if cfg.Migrate {
			_, err = migrations.ApplyPostgres(ctx, pool, logger)
		} else {
			err = migrations.VerifyPostgres(ctx, pool)
		}
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		logger.Info().
			Str("backend", migrations.BackendPostgres).
			Str("access", access.String()).
			Bool("migrated", cfg.Migrate).
			Msg("indexer store connected")
		return pgstore.NewTradeStore(pool), pool.Close, nil

	case migrations.BackendClickhouse:
		var conn *chstore.Conn
		if cfg.Migrate {
			c, _, err := migrations.ApplyClickhouse(ctx, cfg.ClickhouseDSN, logger)
			if err != nil {
				return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
			}
			conn = c
		} else {
			c, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
			if err != nil {
				return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
			}
			if err := migrations.VerifyClickhouse(ctx, c); err != nil {
				c.Close()
				return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
			}
			conn = c
		}
		logger.Info().
			Str("backend", migrations.BackendClickhouse).
			Str("access", access.String()).
			Bool("migrated", cfg.Migrate).
			Msg("indexer store connected")
		return chstore.NewTradeStore(conn), func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown indexer backend %q", cfg.Backend)
	}
}
