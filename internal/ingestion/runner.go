package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/price"
	"market-chart-lab/internal/storage"
)

// ErrNoSource is returned by Run when no trade source could be subscribed.
var ErrNoSource = errors.New("no trade source available")

// Runner forwards ledger trades onto the notification bus. The primary source
// is used while it is available; when it fails or closes the runner switches
// to the fallback source for the rest of its life.
type Runner struct {
	primary  TradeSource
	fallback TradeSource
	bus      notify.Publisher
	indexer  *Indexer
	logger   zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Primary  TradeSource
	Fallback TradeSource
	Bus      notify.Publisher
	// Indexer, when set, also records every trade as an indexer row.
	Indexer *Indexer
	Logger  *zerolog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Runner{
		primary:  opts.Primary,
		fallback: opts.Fallback,
		bus:      opts.Bus,
		indexer:  opts.Indexer,
		logger:   l.With().Str("component", "ingestion").Logger(),
	}
}

// Run forwards trades until ctx is cancelled or every source is exhausted.
func (r *Runner) Run(ctx context.Context) error {
	sources := make([]TradeSource, 0, 2)
	for _, s := range []TradeSource{r.primary, r.fallback} {
		if s != nil {
			sources = append(sources, s)
		}
	}

	for i, src := range sources {
		trades, err := src.Subscribe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Warn().Err(err).Str("source", src.Classification().String()).Msg("trade source unavailable")
			continue
		}
		if i > 0 {
			r.logger.Warn().Str("source", src.Classification().String()).Msg("switched to fallback trade source")
		}

		r.consume(ctx, src.Classification(), trades)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn().Str("source", src.Classification().String()).Msg("trade stream ended")
	}

	return ErrNoSource
}

func (r *Runner) consume(ctx context.Context, class domain.Classification, trades <-chan ledger.Trade) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			r.handleTrade(ctx, class, t)
		}
	}
}

func (r *Runner) handleTrade(ctx context.Context, class domain.Classification, t ledger.Trade) {
	if r.bus != nil {
		r.bus.Publish(TradeMessage(t, class))
	}
	if r.indexer != nil {
		if err := r.indexer.Record(ctx, t); err != nil {
			r.logger.Warn().Err(err).Str("tx", t.TxHash).Msg("indexer write failed")
		}
	}
}

// TradeMessage builds the live notification for a decoded trade. The market is
// identified by its ledger topic.
func TradeMessage(t ledger.Trade, class domain.Classification) notify.Message {
	yes := price.Probability(t.YesPrice)
	return notify.Message{
		MarketID:          t.MarketTopic,
		NewYesProbability: yes,
		NewNoProbability:  price.Complement(yes),
		Provenance:        t.TxHash,
		Classification:    class,
	}
}

// Indexer records decoded trades into a TradeStore, resolving block timestamps
// through the RPC client. It stands in for the external indexer in development.
type Indexer struct {
	store storage.TradeStore
	times *blockTimes
}

// NewIndexer creates an indexer sink.
func NewIndexer(store storage.TradeStore, rpc ledger.RPCClient) *Indexer {
	return &Indexer{store: store, times: newBlockTimes(rpc)}
}

// Record stores one trade. Duplicates are not an error.
func (ix *Indexer) Record(ctx context.Context, t ledger.Trade) error {
	rec, err := ix.record(ctx, t)
	if err != nil {
		return err
	}
	if err := ix.store.InsertBulk(ctx, []*domain.TradeRecord{rec}); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (ix *Indexer) record(ctx context.Context, t ledger.Trade) (*domain.TradeRecord, error) {
	ts, err := ix.times.get(ctx, t.BlockNumber)
	if err != nil {
		return nil, err
	}
	return &domain.TradeRecord{
		MarketID:         t.MarketTopic,
		Timestamp:        ts,
		ExecutedYesPrice: t.YesPrice,
		TransactionID:    t.TxHash,
	}, nil
}

// maxCachedBlocks bounds the block timestamp cache.
const maxCachedBlocks = 4096

// blockTimes caches block timestamps.
type blockTimes struct {
	rpc   ledger.RPCClient
	cache map[uint64]int64
}

func newBlockTimes(rpc ledger.RPCClient) *blockTimes {
	return &blockTimes{rpc: rpc, cache: make(map[uint64]int64)}
}

func (b *blockTimes) get(ctx context.Context, number uint64) (int64, error) {
	if ts, ok := b.cache[number]; ok {
		return ts, nil
	}
	ts, err := b.rpc.BlockTimestamp(ctx, number)
	if err != nil {
		return 0, fmt.Errorf("block %d timestamp: %w", number, err)
	}
	if len(b.cache) >= maxCachedBlocks {
		clear(b.cache)
	}
	b.cache[number] = ts
	return ts, nil
}
