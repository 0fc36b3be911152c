package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/price"
	"market-chart-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
// Prices are stored as raw fixed-point integers with price.DefaultDecimals.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "insert_trades", time.Since(start).Seconds(), err)
	}()

	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		if err := storage.ValidateTrade(t.MarketID, t.TransactionID, t.Timestamp); err != nil {
			return err
		}
	}
	if s.pool.ReadOnly() {
		return storage.ErrReadOnly
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO indexer_trades (market_id, tx_hash, block_time, yes_price_raw)
		VALUES ($1, $2, $3, $4::text::numeric)
	`

	for _, t := range trades {
		raw := t.ExecutedYesPrice.Shift(price.DefaultDecimals).Truncate(0).String()
		if _, err := tx.Exec(ctx, query, t.MarketID, t.TransactionID, t.Timestamp, raw); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			if isReadOnlyError(err) {
				return storage.ErrReadOnly
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByMarketID retrieves all trades for a market, ordered by block_time ASC.
func (s *TradeStore) GetByMarketID(ctx context.Context, marketID string) (trades []*domain.TradeRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "get_trades", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT market_id, tx_hash, block_time, yes_price_raw::text
		FROM indexer_trades
		WHERE market_id = $1
		ORDER BY block_time ASC, tx_hash ASC
	`

	rows, err := s.pool.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("get trades by market id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans rows into TradeRecords.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var (
			t   domain.TradeRecord
			raw string
		)
		if err := rows.Scan(&t.MarketID, &t.TransactionID, &t.Timestamp, &raw); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}

		yes, err := price.ParseFixed(raw, price.DefaultDecimals)
		if err != nil {
			return nil, fmt.Errorf("trade %s price: %w", t.TransactionID, err)
		}
		t.ExecutedYesPrice = yes

		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
