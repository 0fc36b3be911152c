package ingestion

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/observability"
)

// WSTradeSource provides confirmed trades via an eth_subscribe log stream.
type WSTradeSource struct {
	ws      ledger.WSClient
	decoder *ledger.Decoder
	logger  zerolog.Logger
}

// NewWSTradeSource creates a push-based trade source.
func NewWSTradeSource(ws ledger.WSClient, decoder *ledger.Decoder, logger *zerolog.Logger) *WSTradeSource {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &WSTradeSource{
		ws:      ws,
		decoder: decoder,
		logger:  l.With().Str("component", "ws-trades").Logger(),
	}
}

// Classification implements TradeSource.
func (s *WSTradeSource) Classification() domain.Classification {
	return domain.ClassConfirmedEvent
}

// Subscribe implements TradeSource.
func (s *WSTradeSource) Subscribe(ctx context.Context) (<-chan ledger.Trade, error) {
	logsCh, err := s.ws.SubscribeLogs(ctx, s.decoder.ContractFilter(0, 0))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Msg("subscribed to market logs")

	out := make(chan ledger.Trade, 100)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case l, ok := <-logsCh:
				if !ok {
					s.logger.Warn().Msg("log stream closed")
					return
				}
				trade, ok := decodeLog(s.decoder, l, "ws", s.logger)
				if !ok {
					continue
				}
				select {
				case out <- trade:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// decodeLog decodes l, recording it under source. Removed and foreign logs
// are skipped quietly; undecodable market logs are counted as malformed.
func decodeLog(d *ledger.Decoder, l ledger.Log, source string, logger zerolog.Logger) (ledger.Trade, bool) {
	observability.RecordLedgerLog(source, l.BlockNumber)

	trade, err := d.Decode(l)
	if err != nil {
		if !errors.Is(err, ledger.ErrRemovedLog) && !errors.Is(err, ledger.ErrNotMarketEvent) {
			observability.RecordMalformed("ledger")
			logger.Warn().Err(err).Str("tx", l.TxHash).Uint64("block", l.BlockNumber).Msg("skipping undecodable log")
		}
		return ledger.Trade{}, false
	}
	return trade, true
}
