package chart

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/ledger/stub"
)

const testMarket = "0x01"

// tradeLog builds a Buy log whose price word carries yesWei (18 decimals).
func tradeLog(block, index uint64, tx, marketID string, yesWei uint64) ledger.Log {
	return ledger.Log{
		Topics:      []string{ledger.EventTopic(ledger.BuyEventSignature), ledger.MarketTopic(marketID)},
		Data:        fmt.Sprintf("0x%064x%064x", uint64(1), yesWei),
		BlockNumber: block,
		TxHash:      tx,
		LogIndex:    index,
	}
}

func newTestScanner(rpc ledger.RPCClient) *Scanner {
	nop := zerolog.Nop()
	return NewScanner(rpc, DefaultScannerConfig(), &ScannerOptions{Logger: &nop})
}

func TestScanner_Window(t *testing.T) {
	s := newTestScanner(stub.NewRPCClient(0))

	tests := []struct {
		name     string
		latest   uint64
		market   domain.MarketRef
		now      int64
		from, to uint64
	}{
		{"unknown creation uses max range", 50_000, domain.MarketRef{}, 100, 40_001, 50_000},
		{"narrowed by creation time", 50_000, domain.MarketRef{CreatedAt: 1000}, 1500, 49_687, 50_000},
		{"estimate above max range", 50_000, domain.MarketRef{CreatedAt: 1}, 1_000_000, 40_001, 50_000},
		{"clamped at genesis", 100, domain.MarketRef{}, 100, 0, 100},
		{"creation in the future", 50_000, domain.MarketRef{CreatedAt: 2000}, 1000, 40_001, 50_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := s.Window(tt.latest, tt.market, tt.now)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
			assert.LessOrEqual(t, to-from+1, DefaultMaxBlockRange)
		})
	}
}

func TestScanner_Scan(t *testing.T) {
	rpc := stub.NewRPCClient(1000)
	rpc.AddLog(tradeLog(900, 0, "0xa", testMarket, 620_000_000_000_000_000))
	rpc.AddLog(tradeLog(900, 1, "0xb", testMarket, 640_000_000_000_000_000))
	rpc.AddLog(tradeLog(950, 0, "0xc", testMarket, 500_000_000_000_000_000))
	rpc.AddLog(tradeLog(950, 1, "0xd", "0x02", 100_000_000_000_000_000))
	removed := tradeLog(960, 0, "0xe", testMarket, 100_000_000_000_000_000)
	removed.Removed = true
	rpc.AddLog(removed)
	rpc.AddLog(tradeLog(10, 0, "0xf", testMarket, 100_000_000_000_000_000)) // outside window
	rpc.SetBlockTimestamp(900, 1700000300)
	rpc.SetBlockTimestamp(950, 1700000400)

	s := newTestScanner(rpc)
	market := domain.MarketRef{MarketID: testMarket, CreatedAt: 1700000000}

	points, err := s.Scan(context.Background(), market, 1700000500)
	require.NoError(t, err)

	require.Len(t, points, 3)
	assert.Equal(t, []string{"0xa", "0xb", "0xc"}, provenances(points))
	assert.Equal(t, int64(1700000300), points[0].Timestamp)
	assert.Equal(t, 0.62, points[0].YesProbability)
	assert.Equal(t, int64(1700000400), points[2].Timestamp)

	// Timestamps are fetched once per block
	assert.Equal(t, 1, rpc.TimestampCalls(900))
	assert.Equal(t, 1, rpc.TimestampCalls(950))

	filters := rpc.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, uint64(687), filters[0].FromBlock)
	assert.Equal(t, uint64(1000), filters[0].ToBlock)
}

func TestScanner_NoLogs(t *testing.T) {
	s := newTestScanner(stub.NewRPCClient(1000))

	points, err := s.Scan(context.Background(), domain.MarketRef{MarketID: testMarket}, 1700000500)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestScanner_Errors(t *testing.T) {
	t.Run("rpc failure", func(t *testing.T) {
		rpc := stub.NewRPCClient(1000)
		boom := errors.New("boom")
		rpc.SetError(boom)

		_, err := newTestScanner(rpc).Scan(context.Background(), domain.MarketRef{MarketID: testMarket}, 0)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing block timestamp", func(t *testing.T) {
		rpc := stub.NewRPCClient(1000)
		rpc.AddLog(tradeLog(900, 0, "0xa", testMarket, 620_000_000_000_000_000))

		_, err := newTestScanner(rpc).Scan(context.Background(), domain.MarketRef{MarketID: testMarket}, 0)
		assert.ErrorIs(t, err, ledger.ErrBlockNotFound)
	})

	t.Run("short data skipped", func(t *testing.T) {
		rpc := stub.NewRPCClient(1000)
		l := tradeLog(900, 0, "0xa", testMarket, 0)
		l.Data = "0x00"
		rpc.AddLog(l)

		points, err := newTestScanner(rpc).Scan(context.Background(), domain.MarketRef{MarketID: testMarket}, 0)
		require.NoError(t, err)
		assert.Empty(t, points)
	})
}
