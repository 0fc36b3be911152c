package migrations

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"market-chart-lab/internal/storage/postgres"
)

// Columns the Postgres trade store reads and writes.
var postgresTradeColumns = []string{"market_id", "tx_hash", "block_time", "yes_price_raw"}

// ApplyPostgres applies the embedded Postgres schema and verifies the trade table.
// Every migration is idempotent, so reapplying is safe.
func ApplyPostgres(ctx context.Context, pool *postgres.Pool, logger zerolog.Logger) (Result, error) {
	res := Result{Backend: BackendPostgres}
	migs, err := Load(BackendPostgres)
	if err != nil {
		return res, err
	}

	for _, m := range migs {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return res, fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		res.Applied = append(res.Applied, m.Name)
		logger.Debug().Str("backend", BackendPostgres).Str("migration", m.Name).Msg("migration applied")
	}

	return res, VerifyPostgres(ctx, pool)
}

// VerifyPostgres checks the trade table without changing the schema.
func VerifyPostgres(ctx context.Context, pool *postgres.Pool) error {
	cols, err := pool.TableColumns(ctx, TradeTable)
	if err != nil {
		return err
	}
	return checkColumns(BackendPostgres, cols, postgresTradeColumns)
}
