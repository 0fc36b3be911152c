package ingestion

import (
	"context"
	"fmt"
	"sync"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/notify"
)

// marketLog builds a Buy log whose price word carries yesWei (18 decimals).
func marketLog(block, index uint64, tx, marketID string, yesWei uint64) ledger.Log {
	return ledger.Log{
		Topics:      []string{ledger.EventTopic(ledger.BuyEventSignature), ledger.MarketTopic(marketID)},
		Data:        fmt.Sprintf("0x%064x%064x", uint64(1), yesWei),
		BlockNumber: block,
		TxHash:      tx,
		LogIndex:    index,
	}
}

// recordingPublisher captures published messages.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (p *recordingPublisher) Publish(msg notify.Message) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return 1
}

func (p *recordingPublisher) Messages() []notify.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notify.Message, len(p.msgs))
	copy(out, p.msgs)
	return out
}

// mockTradeSource implements a controllable trade source for testing.
type mockTradeSource struct {
	ch    chan ledger.Trade
	class domain.Classification
	err   error
}

func newMockTradeSource(class domain.Classification) *mockTradeSource {
	return &mockTradeSource{ch: make(chan ledger.Trade, 100), class: class}
}

func (m *mockTradeSource) Subscribe(_ context.Context) (<-chan ledger.Trade, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.ch, nil
}

func (m *mockTradeSource) Classification() domain.Classification {
	return m.class
}

func (m *mockTradeSource) Send(t ledger.Trade) {
	m.ch <- t
}

func (m *mockTradeSource) Close() {
	close(m.ch)
}
