// Package ingestion turns raw ledger logs into live notifications on the bus
// and, for development deployments, into indexer trade records.
package ingestion

import (
	"context"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
)

// TradeSource provides decoded market trades from the ledger.
type TradeSource interface {
	// Subscribe returns a channel of trades. The channel is closed when the
	// context is cancelled or the underlying stream ends.
	Subscribe(ctx context.Context) (<-chan ledger.Trade, error)

	// Classification is attached to notifications built from this source.
	Classification() domain.Classification
}
