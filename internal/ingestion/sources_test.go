package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/ledger/stub"
)

func receive(t *testing.T, ch <-chan ledger.Trade) ledger.Trade {
	t.Helper()
	select {
	case tr, ok := <-ch:
		require.True(t, ok, "trade channel closed")
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for trade")
	}
	return ledger.Trade{}
}

func TestWSTradeSource(t *testing.T) {
	ws := stub.NewWSClient()
	decoder := ledger.NewDecoder(ledger.DefaultDecoderConfig())
	src := NewWSTradeSource(ws, decoder, nopLogger())
	assert.Equal(t, domain.ClassConfirmedEvent, src.Classification())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trades, err := src.Subscribe(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, ws.Subscriptions())

	removed := marketLog(9, 0, "0xdead", "0x01", 1)
	removed.Removed = true
	ws.Emit(removed)
	short := marketLog(9, 1, "0xshort", "0x01", 1)
	short.Data = "0x"
	ws.Emit(short)
	ws.Emit(marketLog(10, 0, "0xabc", "0x01", 620_000_000_000_000_000))

	tr := receive(t, trades)
	assert.Equal(t, "0xabc", tr.TxHash)
	assert.Equal(t, ledger.MarketTopic("0x01"), tr.MarketTopic)

	require.NoError(t, ws.Close())
	select {
	case _, ok := <-trades:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("trade channel not closed")
	}
}

func TestWSTradeSource_SubscribeError(t *testing.T) {
	ws := stub.NewWSClient()
	ws.FailSubscribe(ledger.ErrClientClosed)
	src := NewWSTradeSource(ws, ledger.NewDecoder(ledger.DefaultDecoderConfig()), nopLogger())

	_, err := src.Subscribe(context.Background())
	assert.ErrorIs(t, err, ledger.ErrClientClosed)
}

func TestPollingTradeSource(t *testing.T) {
	rpc := stub.NewRPCClient(102)
	rpc.AddLog(marketLog(96, 1, "0xb", "0x01", 600_000_000_000_000_000))
	rpc.AddLog(marketLog(96, 0, "0xa", "0x01", 500_000_000_000_000_000))
	rpc.AddLog(marketLog(100, 0, "0xc", "0x02", 400_000_000_000_000_000))
	rpc.AddLog(marketLog(90, 0, "0xold", "0x01", 400_000_000_000_000_000))

	src := NewPollingTradeSource(rpc, ledger.NewDecoder(ledger.DefaultDecoderConfig()), PollingOptions{
		Interval:   10 * time.Millisecond,
		MaxBlocks:  3,
		StartBlock: 95,
		Logger:     nopLogger(),
	})
	assert.Equal(t, domain.ClassBlockPollFallback, src.Classification())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trades, err := src.Subscribe(ctx)
	require.NoError(t, err)

	assert.Equal(t, "0xa", receive(t, trades).TxHash)
	assert.Equal(t, "0xb", receive(t, trades).TxHash)
	assert.Equal(t, "0xc", receive(t, trades).TxHash)

	filters := rpc.Filters()
	require.GreaterOrEqual(t, len(filters), 3)
	assert.Equal(t, uint64(95), filters[0].FromBlock)
	assert.Equal(t, uint64(97), filters[0].ToBlock)
	assert.Equal(t, uint64(101), filters[2].FromBlock)
	assert.Equal(t, uint64(102), filters[2].ToBlock)

	// New blocks are picked up on later ticks
	rpc.AddLog(marketLog(103, 0, "0xd", "0x01", 500_000_000_000_000_000))
	rpc.SetHead(103)
	assert.Equal(t, "0xd", receive(t, trades).TxHash)
}

func TestPollingTradeSource_StartsAtHead(t *testing.T) {
	rpc := stub.NewRPCClient(50)
	rpc.AddLog(marketLog(50, 0, "0xold", "0x01", 500_000_000_000_000_000))

	src := NewPollingTradeSource(rpc, ledger.NewDecoder(ledger.DefaultDecoderConfig()), PollingOptions{
		Interval: 10 * time.Millisecond,
		Logger:   nopLogger(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trades, err := src.Subscribe(ctx)
	require.NoError(t, err)

	rpc.AddLog(marketLog(51, 0, "0xnew", "0x01", 500_000_000_000_000_000))
	rpc.SetHead(51)
	assert.Equal(t, "0xnew", receive(t, trades).TxHash)
}
