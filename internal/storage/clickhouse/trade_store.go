package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using ClickHouse.
type TradeStore struct {
	conn *Conn
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(conn *Conn) *TradeStore {
	return &TradeStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds multiple trades. Fails entire batch on duplicate (market_id, tx_hash, block_time).
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) (err error) {
	if len(trades) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_trades", time.Since(start).Seconds(), err)
	}()

	type key struct {
		marketID string
		txID     string
		ts       int64
	}
	seen := make(map[key]struct{}, len(trades))
	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		if err := storage.ValidateTrade(t.MarketID, t.TransactionID, t.Timestamp); err != nil {
			return err
		}
		k := key{t.MarketID, t.TransactionID, t.Timestamp}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness
	for _, t := range trades {
		exists, err := s.exists(ctx, t.MarketID, t.TransactionID, t.Timestamp)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO indexer_trades (market_id, tx_hash, block_time, yes_price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		if err := batch.Append(t.MarketID, t.TransactionID, t.Timestamp, t.ExecutedYesPrice); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMarketID retrieves all trades for a market, ordered by block_time ASC.
func (s *TradeStore) GetByMarketID(ctx context.Context, marketID string) (trades []*domain.TradeRecord, err error) {
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "get_trades", time.Since(start).Seconds(), err)
	}()

	query := `
		SELECT market_id, tx_hash, block_time, yes_price
		FROM indexer_trades FINAL
		WHERE market_id = ?
		ORDER BY block_time ASC, tx_hash ASC
	`

	rows, err := s.conn.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("query by market id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func (s *TradeStore) exists(ctx context.Context, marketID, txID string, ts int64) (bool, error) {
	query := `
		SELECT count(*) FROM indexer_trades
		WHERE market_id = ? AND tx_hash = ? AND block_time = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, marketID, txID, ts).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanTrades(rows chRows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var (
			t   domain.TradeRecord
			yes decimal.Decimal
		)
		if err := rows.Scan(&t.MarketID, &t.TransactionID, &t.Timestamp, &yes); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.ExecutedYesPrice = yes
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
