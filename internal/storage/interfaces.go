package storage

import (
	"context"

	"market-chart-lab/internal/domain"
)

// TradeReader is the read-only view of the historical indexer.
type TradeReader interface {
	// GetByMarketID retrieves executed trades for a market, ordered by timestamp ASC.
	GetByMarketID(ctx context.Context, marketID string) ([]*domain.TradeRecord, error)
}

// TradeStore is a writable indexer table, used by the development indexer and tests.
type TradeStore interface {
	TradeReader

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate
	// (market_id, tx_hash, timestamp).
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error
}
