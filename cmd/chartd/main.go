// Package main runs the chart daemon: the market chart controller, the live
// ledger feed, the notification relay and the HTTP/WebSocket API.
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

	"market-chart-lab/internal/api"
	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/config"
	"market-chart-lab/internal/ingestion"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/storage/backend"
)

func main() {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CHART_CONFIG"), "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	market := flag.String("market", "", "Market id to open at startup")
	createdAt := flag.Int64("created-at", 0, "Creation time (Unix seconds) of --market")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := observability.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
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

	err = run(ctx, cfg, logger, *market, *createdAt)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("chartd failed")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, market string, createdAt int64) error {
	access := backend.ReadOnly
	if cfg.Indexer.RecordLive {
		access = backend.ReadWrite
	}
	store, closeStore, err := backend.Open(ctx, cfg.Indexer, access, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	rpc := ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.ClientOptions()...)
	decoder := ledger.NewDecoder(cfg.Ledger.DecoderConfig())
	bus := notify.NewBus(&notify.BusOptions{Logger: &logger})

	ctrl := chart.NewController(chart.Options{
		Trades:              store,
		Scanner:             chart.NewScanner(rpc, cfg.ScannerConfig(), &chart.ScannerOptions{Logger: &logger}),
		Bus:                 bus,
		Logger:              &logger,
		DivergenceThreshold: cfg.Chart.DivergenceThreshold,
		Gaps:                cfg.Chart.GapConfig(),
		SubscriptionBuffer:  cfg.Chart.SubscriptionBuffer,
		HistoryTimeout:      cfg.Chart.HistoryTimeout,
		ScanTimeout:         cfg.Chart.ScanTimeout,
	})

	errCh := make(chan error, 4)

	go func() {
		if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("chart controller: %w", err)
		}
	}()

	// Live ledger feed: WebSocket subscription first, block polling after it fails.
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

	var indexer *ingestion.Indexer
	if cfg.Indexer.RecordLive {
		indexer = ingestion.NewIndexer(store, rpc)
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Primary:  primary,
		Fallback: fallback,
		Bus:      bus,
		Indexer:  indexer,
		Logger:   &logger,
	})
	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			// The chart keeps serving indexer history and posted notifications.
			logger.Error().Err(err).Msg("ledger feed stopped")
		}
	}()

	var relay *notify.RedisRelay
	if cfg.Notify.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Notify.Redis.Addr,
			Password: cfg.Notify.Redis.Password,
			DB:       cfg.Notify.Redis.DB,
		})
		defer client.Close()

		relay = notify.NewRedisRelay(client, bus, &notify.RelayOptions{
			Channel: cfg.Notify.Redis.Channel,
			Logger:  &logger,
		})
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("redis relay: %w", err)
			}
		}()
	}

	apiOpts := api.Options{Chart: ctrl, Bus: bus, Logger: &logger}
	if relay != nil {
		apiOpts.Relay = relay
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(apiOpts).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if market != "" {
		openCtx, cancel := context.WithTimeout(ctx, cfg.Chart.HistoryTimeout+5*time.Second)
		snap, err := ctrl.Open(openCtx, chart.OpenRequest{MarketID: market, CreatedAt: createdAt})
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("market", market).Msg("open startup market")
		} else {
			logger.Info().Str("market", market).Int("points", len(snap.Points)).Msg("startup market opened")
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown")
	}
	return runErr
}
