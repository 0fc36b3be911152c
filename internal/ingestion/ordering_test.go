package ingestion

import (
	"errors"
	"testing"

	"market-chart-lab/internal/ledger"
)

func TestSortTrades(t *testing.T) {
	// Intentionally unordered trades
	trades := []ledger.Trade{
		{BlockNumber: 200, LogIndex: 0, TxHash: "0x2"},
		{BlockNumber: 100, LogIndex: 1, TxHash: "0x1"},
		{BlockNumber: 100, LogIndex: 0, TxHash: "0x1"},
		{BlockNumber: 100, LogIndex: 2, TxHash: "0x0"},
		{BlockNumber: 300, LogIndex: 0, TxHash: "0x1"},
	}

	SortTrades(trades)

	expected := []struct {
		block uint64
		index uint64
	}{
		{100, 0},
		{100, 1},
		{100, 2},
		{200, 0},
		{300, 0},
	}

	for i, exp := range expected {
		if trades[i].BlockNumber != exp.block || trades[i].LogIndex != exp.index {
			t.Errorf("Index %d: got (%d, %d), want (%d, %d)",
				i, trades[i].BlockNumber, trades[i].LogIndex, exp.block, exp.index)
		}
	}

	if err := ValidateTradeOrdering(trades); err != nil {
		t.Errorf("sorted trades failed validation: %v", err)
	}
}

func TestSortTrades_Empty(t *testing.T) {
	var trades []ledger.Trade
	SortTrades(trades) // Should not panic
}

func TestValidateTradeOrdering(t *testing.T) {
	unordered := []ledger.Trade{
		{BlockNumber: 200},
		{BlockNumber: 100},
	}
	if err := ValidateTradeOrdering(unordered); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering, got %v", err)
	}

	duplicate := []ledger.Trade{
		{BlockNumber: 100, LogIndex: 1, TxHash: "0x1"},
		{BlockNumber: 100, LogIndex: 1, TxHash: "0x1"},
	}
	if err := ValidateTradeOrdering(duplicate); !errors.Is(err, ErrInvalidOrdering) {
		t.Errorf("expected ErrInvalidOrdering for duplicate, got %v", err)
	}
}
