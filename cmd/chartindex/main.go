// Package main is the development indexer: it records market Buy/Sell trades
// from the ledger into the indexer store, live or over a block range, and
// optionally relays confirmations to chart daemons through Redis.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"market-chart-lab/internal/config"
	"market-chart-lab/internal/ingestion"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/storage/backend"
)

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "live", "Indexing mode: live or backfill")
	configPath := flag.String("config", os.Getenv("CHART_CONFIG"), "Path to YAML config file")
	fromBlock := flag.Uint64("from-block", 0, "First block for backfill")
	toBlock := flag.Uint64("to-block", 0, "Last block for backfill (0 = head)")
	latest := flag.Uint64("latest", 0, "Backfill the last N blocks instead of a range")
	metricsAddr := flag.String("metrics-addr", ":9091", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := observability.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info().Str("addr", *metricsAddr).Msg("metrics server listening")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	switch *mode {
	case "live":
		err = runLive(ctx, cfg, logger)
	case "backfill":
		err = runBackfill(ctx, cfg, logger, *fromBlock, *toBlock, *latest)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Str("mode", *mode).Msg("chartindex failed")
	}
	logger.Info().Msg("shutdown complete")
}

// runLive records trades as they are confirmed.
func runLive(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	store, closeStore, err := backend.Open(ctx, cfg.Indexer, backend.ReadWrite, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rpc := ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.ClientOptions()...)
	decoder := ledger.NewDecoder(cfg.Ledger.DecoderConfig())

	var primary ingestion.TradeSource
	if cfg.Ledger.WSURL != "" {
		wsCfg := ledger.DefaultWSConfig()
		wsCfg.Logger = &logger
		ws, err := ledger.NewWSClient(ctx, cfg.Ledger.WSURL, &wsCfg)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket unavailable, using block polling only")
		} else {
			defer ws.Close()
			primary = ingestion.NewWSTradeSource(ws, decoder, &logger)
		}
	}
	fallback := ingestion.NewPollingTradeSource(rpc, decoder, ingestion.PollingOptions{
		Interval:  cfg.Ledger.PollInterval,
		MaxBlocks: cfg.Ledger.PollMaxBlocks,
		Logger:    &logger,
	})

	// Without Redis confirmations stay in this process.
	var publisher notify.Publisher = notify.NewBus(&notify.BusOptions{Logger: &logger})
	if cfg.Notify.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
		})
		defer client.Close()
		relay := notify.NewRedisRelay(client, nil, &notify.RelayOptions{
			Channel: cfg.Notify.Redis.Channel,
			Logger:  &logger,
		})
		publisher = relay.Publisher(ctx)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Primary:  primary,
		Fallback: fallback,
		Bus:      publisher,
		Indexer:  ingestion.NewIndexer(store, rpc),
		Logger:   &logger,
	})

	logger.Info().Msg("starting live indexing")
	return runner.Run(ctx)
}

// runBackfill records trades from a historical block range.
func runBackfill(ctx context.Context, cfg *config.Config, logger zerolog.Logger, from, to, latest uint64) error {
	store, closeStore, err := backend.Open(ctx, cfg.Indexer, backend.ReadWrite, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rpc := ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.ClientOptions()...)
	backfiller := ingestion.NewBackfiller(ingestion.BackfillOptions{
		RPC:       rpc,
		Decoder:   ledger.NewDecoder(cfg.Ledger.DecoderConfig()),
		Store:     store,
		MaxBlocks: cfg.Ledger.PollMaxBlocks,
		Logger:    &logger,
	})

	var result *ingestion.BackfillResult
	switch {
	case latest > 0:
		logger.Info().Uint64("blocks", latest).Msg("backfilling latest blocks")
		result, err = backfiller.BackfillLatest(ctx, latest)
	default:
		if to == 0 {
			head, err := rpc.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("get head block: %w", err)
			}
			to = head
		}
		logger.Info().Uint64("from", from).Uint64("to", to).Msg("backfilling block range")
		result, err = backfiller.BackfillRange(ctx, from, to)
	}
	if err != nil {
		return err
	}

	logger.Info().
		Int("logs", result.LogsScanned).
		Int("ingested", result.TradesIngested).
		Int("duplicates", result.DuplicatesSkipped).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("backfill complete")
	return nil
}
