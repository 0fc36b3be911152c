package chart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/price"
)

// Scanner defaults.
const (
	DefaultMaxBlockRange   uint64  = 10_000
	DefaultBlocksPerSecond float64 = 0.5
	DefaultRangeMargin     float64 = 1.25
)

// ScannerConfig configures the gap recovery scanner.
type ScannerConfig struct {
	// MaxBlockRange is the per-query block-count ceiling.
	MaxBlockRange uint64
	// BlocksPerSecond estimates block production to narrow the window from the creation time.
	BlocksPerSecond float64
	// RangeMargin widens the estimated window to absorb block-time jitter.
	RangeMargin float64
	// Decoder configures Buy/Sell log recognition.
	Decoder ledger.DecoderConfig
}

// DefaultScannerConfig returns the default scanner configuration.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		MaxBlockRange:   DefaultMaxBlockRange,
		BlocksPerSecond: DefaultBlocksPerSecond,
		RangeMargin:     DefaultRangeMargin,
		Decoder:         ledger.DefaultDecoderConfig(),
	}
}

// ScannerOptions configures Scanner construction.
type ScannerOptions struct {
	Logger *zerolog.Logger
}

// Scanner recovers price points from raw ledger logs when the indexer lags.
type Scanner struct {
	rpc     ledger.RPCClient
	decoder *ledger.Decoder
	cfg     ScannerConfig
	logger  zerolog.Logger
}

// NewScanner creates a scanner reading logs through rpc.
func NewScanner(rpc ledger.RPCClient, cfg ScannerConfig, opts *ScannerOptions) *Scanner {
	def := DefaultScannerConfig()
	if cfg.MaxBlockRange == 0 {
		cfg.MaxBlockRange = def.MaxBlockRange
	}
	if cfg.BlocksPerSecond <= 0 {
		cfg.BlocksPerSecond = def.BlocksPerSecond
	}
	if cfg.RangeMargin < 1 {
		cfg.RangeMargin = def.RangeMargin
	}

	logger := log.Logger
	if opts != nil && opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Scanner{
		rpc:     rpc,
		decoder: ledger.NewDecoder(cfg.Decoder),
		cfg:     cfg,
		logger:  logger.With().Str("component", "scanner").Logger(),
	}
}

// Window returns the inclusive block range to scan given the head block.
// The range never exceeds MaxBlockRange; when the creation time is known it is
// narrowed to the blocks estimated to have been produced since then.
func (s *Scanner) Window(latest uint64, market domain.MarketRef, now int64) (from, to uint64) {
	span := s.cfg.MaxBlockRange
	if market.HasCreationTime() && now > market.CreatedAt {
		elapsed := float64(now - market.CreatedAt)
		est := math.Ceil(elapsed*s.cfg.BlocksPerSecond*s.cfg.RangeMargin) + 1
		if est < float64(span) {
			span = uint64(est)
		}
	}
	if span > latest+1 {
		span = latest + 1
	}
	return latest - span + 1, latest
}

// Scan queries Buy/Sell logs for the market over the bounded window and returns
// one point per log, timestamped by its block. Zero logs is not an error.
func (s *Scanner) Scan(ctx context.Context, market domain.MarketRef, now int64) ([]domain.PricePoint, error) {
	latest, err := s.rpc.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}

	from, to := s.Window(latest, market, now)
	logs, err := s.rpc.GetLogs(ctx, s.decoder.Filter(market.MarketID, from, to))
	if err != nil {
		return nil, fmt.Errorf("get logs [%d,%d]: %w", from, to, err)
	}

	s.logger.Debug().
		Str("market", market.MarketID).
		Uint64("from", from).
		Uint64("to", to).
		Int("logs", len(logs)).
		Msg("ledger window scanned")

	blockTimes := make(map[uint64]int64)
	points := make([]domain.PricePoint, 0, len(logs))

	for _, l := range logs {
		trade, err := s.decoder.Decode(l)
		if err != nil {
			if !errors.Is(err, ledger.ErrRemovedLog) && !errors.Is(err, ledger.ErrNotMarketEvent) {
				s.logger.Warn().Err(err).Str("tx", l.TxHash).Msg("skipping undecodable log")
			}
			continue
		}

		ts, ok := blockTimes[trade.BlockNumber]
		if !ok {
			ts, err = s.rpc.BlockTimestamp(ctx, trade.BlockNumber)
			if err != nil {
				return nil, fmt.Errorf("block %d timestamp: %w", trade.BlockNumber, err)
			}
			blockTimes[trade.BlockNumber] = ts
		}

		points = append(points, domain.NewPricePoint(ts, price.Probability(trade.YesPrice), trade.TxHash))
	}

	return points, nil
}
