package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/storage"
)

// Backfiller loads historical market trades from ledger logs into the indexer store.
type Backfiller struct {
	rpc       ledger.RPCClient
	decoder   *ledger.Decoder
	indexer   *Indexer
	maxBlocks uint64
	batchSize int
	logger    zerolog.Logger
}

// BackfillOptions contains configuration for creating a Backfiller.
type BackfillOptions struct {
	RPC     ledger.RPCClient
	Decoder *ledger.Decoder
	Store   storage.TradeStore
	// MaxBlocks bounds a single eth_getLogs query.
	MaxBlocks uint64
	BatchSize int
	Logger    *zerolog.Logger
}

// NewBackfiller creates a new historical backfiller.
func NewBackfiller(opts BackfillOptions) *Backfiller {
	if opts.MaxBlocks == 0 {
		opts.MaxBlocks = DefaultPollMaxBlocks
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Decoder == nil {
		opts.Decoder = ledger.NewDecoder(ledger.DefaultDecoderConfig())
	}
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &Backfiller{
		rpc:       opts.RPC,
		decoder:   opts.Decoder,
		indexer:   NewIndexer(opts.Store, opts.RPC),
		maxBlocks: opts.MaxBlocks,
		batchSize: opts.BatchSize,
		logger:    l.With().Str("component", "backfill").Logger(),
	}
}

// BackfillResult contains statistics from a backfill operation.
type BackfillResult struct {
	LogsScanned       int
	TradesIngested    int
	DuplicatesSkipped int
	Errors            int
	Duration          time.Duration
}

// BackfillLatest backfills the last n blocks up to the current head.
func (b *Backfiller) BackfillLatest(ctx context.Context, n uint64) (*BackfillResult, error) {
	head, err := b.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	from := uint64(0)
	if n > 0 && head+1 > n {
		from = head + 1 - n
	}
	return b.BackfillRange(ctx, from, head)
}

// BackfillRange backfills blocks [from, to] (inclusive) in bounded chunks.
func (b *Backfiller) BackfillRange(ctx context.Context, from, to uint64) (*BackfillResult, error) {
	if from > to {
		return nil, fmt.Errorf("%w: from %d > to %d", storage.ErrInvalidInput, from, to)
	}

	start := time.Now()
	result := &BackfillResult{}

	b.logger.Info().Uint64("from", from).Uint64("to", to).Msg("starting backfill")

	for chunk := from; chunk <= to; {
		end := to
		if end-chunk+1 > b.maxBlocks {
			end = chunk + b.maxBlocks - 1
		}

		logs, err := b.rpc.GetLogs(ctx, b.decoder.ContractFilter(chunk, end))
		if err != nil {
			return result, fmt.Errorf("get logs [%d,%d]: %w", chunk, end, err)
		}
		result.LogsScanned += len(logs)

		trades := make([]ledger.Trade, 0, len(logs))
		for _, l := range logs {
			if t, ok := decodeLog(b.decoder, l, "backfill", b.logger); ok {
				trades = append(trades, t)
			}
		}
		SortTrades(trades)

		records := make([]*domain.TradeRecord, 0, len(trades))
		for _, t := range trades {
			rec, err := b.indexer.record(ctx, t)
			if err != nil {
				return result, err
			}
			records = append(records, rec)
		}

		stored, dupes, errs := b.storeTrades(ctx, records)
		result.TradesIngested += stored
		result.DuplicatesSkipped += dupes
		result.Errors += errs

		if end == to {
			break
		}
		chunk = end + 1
	}

	result.Duration = time.Since(start)
	b.logger.Info().
		Int("logs", result.LogsScanned).
		Int("trades", result.TradesIngested).
		Int("dupes", result.DuplicatesSkipped).
		Int("errors", result.Errors).
		Dur("elapsed", result.Duration).
		Msg("backfill complete")

	return result, nil
}

// storeTrades stores records in batches, handling duplicates.
func (b *Backfiller) storeTrades(ctx context.Context, records []*domain.TradeRecord) (stored, dupes, errs int) {
	store := b.indexer.store

	for i := 0; i < len(records); i += b.batchSize {
		end := i + b.batchSize
		if end > len(records) {
			end = len(records)
		}

		batch := records[i:end]
		err := store.InsertBulk(ctx, batch)
		switch {
		case err == nil:
			stored += len(batch)
		case errors.Is(err, storage.ErrDuplicateKey):
			// Insert one by one to find which are duplicates
			for _, rec := range batch {
				if err := store.InsertBulk(ctx, []*domain.TradeRecord{rec}); err != nil {
					if errors.Is(err, storage.ErrDuplicateKey) {
						dupes++
					} else {
						errs++
					}
				} else {
					stored++
				}
			}
		default:
			errs += len(batch)
			b.logger.Warn().Err(err).Int("batch", len(batch)).Msg("error storing batch")
		}
	}

	return stored, dupes, errs
}
