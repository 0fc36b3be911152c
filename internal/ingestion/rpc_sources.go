package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
)

// Poller defaults.
const (
	DefaultPollInterval  = 4 * time.Second
	DefaultPollMaxBlocks = 2_000
)

// PollingTradeSource provides trades by polling eth_blockNumber / eth_getLogs.
// It is the fallback when the push stream is unavailable.
type PollingTradeSource struct {
	rpc       ledger.RPCClient
	decoder   *ledger.Decoder
	interval  time.Duration
	maxBlocks uint64
	logger    zerolog.Logger

	// next is the first block not yet scanned; 0 starts at the current head.
	next uint64
}

// PollingOptions configures a PollingTradeSource.
type PollingOptions struct {
	Interval  time.Duration
	MaxBlocks uint64
	// StartBlock is the first block to poll; 0 starts after the current head.
	StartBlock uint64
	Logger     *zerolog.Logger
}

// NewPollingTradeSource creates a polling trade source.
func NewPollingTradeSource(rpc ledger.RPCClient, decoder *ledger.Decoder, opts PollingOptions) *PollingTradeSource {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.MaxBlocks == 0 {
		opts.MaxBlocks = DefaultPollMaxBlocks
	}
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	return &PollingTradeSource{
		rpc:       rpc,
		decoder:   decoder,
		interval:  opts.Interval,
		maxBlocks: opts.MaxBlocks,
		next:      opts.StartBlock,
		logger:    l.With().Str("component", "block-poller").Logger(),
	}
}

// Classification implements TradeSource.
func (s *PollingTradeSource) Classification() domain.Classification {
	return domain.ClassBlockPollFallback
}

// Subscribe implements TradeSource. Polling errors are logged and retried on
// the next tick.
func (s *PollingTradeSource) Subscribe(ctx context.Context) (<-chan ledger.Trade, error) {
	if s.next == 0 {
		head, err := s.rpc.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		s.next = head + 1
	}
	s.logger.Info().Uint64("from_block", s.next).Dur("interval", s.interval).Msg("polling market logs")

	out := make(chan ledger.Trade, 100)
	go func() {
		defer close(out)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			if !s.poll(ctx, out) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out, nil
}

// poll scans new blocks once. It returns false when ctx is done.
func (s *PollingTradeSource) poll(ctx context.Context, out chan<- ledger.Trade) bool {
	head, err := s.rpc.BlockNumber(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn().Err(err).Msg("block number failed")
		return true
	}

	for s.next <= head {
		to := head
		if to-s.next+1 > s.maxBlocks {
			to = s.next + s.maxBlocks - 1
		}

		logs, err := s.rpc.GetLogs(ctx, s.decoder.ContractFilter(s.next, to))
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			s.logger.Warn().Err(err).Uint64("from", s.next).Uint64("to", to).Msg("get logs failed")
			return true
		}

		trades := make([]ledger.Trade, 0, len(logs))
		for _, l := range logs {
			if trade, ok := decodeLog(s.decoder, l, "poll", s.logger); ok {
				trades = append(trades, trade)
			}
		}
		SortTrades(trades)

		for _, t := range trades {
			select {
			case out <- t:
			case <-ctx.Done():
				return false
			}
		}
		s.next = to + 1
	}
	return true
}
