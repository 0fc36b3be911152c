package memory

import (
	"context"
	"sort"
	"sync"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/storage"
)

type tradeKey struct {
	marketID string
	txID     string
	ts       int64
}

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.TradeRecord // keyed by market_id
	keys map[tradeKey]struct{}
	err  error
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data: make(map[string][]*domain.TradeRecord),
		keys: make(map[tradeKey]struct{}),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// FailWith makes every subsequent read return err (nil clears it).
func (s *TradeStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[tradeKey]struct{}, len(trades))

	// First pass: validate and check for duplicates (existing + intra-batch)
	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		if err := storage.ValidateTrade(t.MarketID, t.TransactionID, t.Timestamp); err != nil {
			return err
		}
		k := tradeKey{t.MarketID, t.TransactionID, t.Timestamp}
		if _, exists := s.keys[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range trades {
		cp := *t
		s.keys[tradeKey{t.MarketID, t.TransactionID, t.Timestamp}] = struct{}{}
		s.data[t.MarketID] = append(s.data[t.MarketID], &cp)
	}
	return nil
}

// GetByMarketID retrieves all trades for a market, ordered by timestamp ASC.
func (s *TradeStore) GetByMarketID(_ context.Context, marketID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}

	stored := s.data[marketID]
	result := make([]*domain.TradeRecord, 0, len(stored))
	for _, t := range stored {
		cp := *t
		result = append(result, &cp)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].TransactionID < result[j].TransactionID
	})
	return result, nil
}
