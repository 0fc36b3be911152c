package ingestion

import (
	"errors"
	"sort"

	"market-chart-lab/internal/ledger"
)

// ErrInvalidOrdering is returned when trades are not properly ordered.
var ErrInvalidOrdering = errors.New("trades are not in ledger order")

// SortTrades orders trades by (block ASC, log_index ASC, tx_hash ASC).
func SortTrades(trades []ledger.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return compareTrades(trades[i], trades[j]) < 0
	})
}

// ValidateTradeOrdering returns ErrInvalidOrdering unless trades are strictly ordered.
func ValidateTradeOrdering(trades []ledger.Trade) error {
	for i := 1; i < len(trades); i++ {
		if compareTrades(trades[i-1], trades[i]) >= 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareTrades returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareTrades(a, b ledger.Trade) int {
	if a.BlockNumber != b.BlockNumber {
		if a.BlockNumber < b.BlockNumber {
			return -1
		}
		return 1
	}
	if a.LogIndex != b.LogIndex {
		if a.LogIndex < b.LogIndex {
			return -1
		}
		return 1
	}
	if a.TxHash != b.TxHash {
		if a.TxHash < b.TxHash {
			return -1
		}
		return 1
	}
	return 0
}
