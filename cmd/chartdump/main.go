// Package main reconciles one market's series from the indexer and the
// ledger and writes it as JSON, CSV or Markdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/config"
	"market-chart-lab/internal/ledger"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/reporting"
	"market-chart-lab/internal/storage/backend"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("CHART_CONFIG"), "Path to YAML config file")
	market := flag.String("market", "", "Market id (required)")
	createdAt := flag.Int64("created-at", 0, "Market creation time, Unix seconds")
	observed := flag.String("observed-yes", "", "Current yes price to check the indexer against")
	noScan := flag.Bool("no-scan", false, "Skip the ledger scan")
	format := flag.String("format", "json", "Output format: json, csv or markdown")
	outputDir := flag.String("output-dir", "", "Write series and gap files here instead of stdout")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall deadline")
	flag.Parse()

	if *market == "" {
		fmt.Fprintln(os.Stderr, "Error: --market is required")
		flag.Usage()
		os.Exit(1)
	}

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

	req := chart.OpenRequest{MarketID: *market, CreatedAt: *createdAt, ForceScan: !*noScan}
	if *observed != "" {
		v, err := strconv.ParseFloat(*observed, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --observed-yes: %v\n", err)
			os.Exit(1)
		}
		req.ObservedYes = &v
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := reconcile(ctx, cfg, logger, req, *noScan)
	if err != nil {
		logger.Fatal().Err(err).Str("market", *market).Msg("reconcile failed")
	}

	if *outputDir != "" {
		if err := writeFiles(*outputDir, report); err != nil {
			logger.Fatal().Err(err).Msg("write output")
		}
		logger.Info().Str("dir", *outputDir).Int("points", len(report.Points)).Msg("report written")
		return
	}
	if err := render(os.Stdout, *format, report); err != nil {
		logger.Fatal().Err(err).Msg("render output")
	}
}

// reconcile opens the market on a private controller, waits for history and
// the ledger scan to settle and builds the report.
func reconcile(ctx context.Context, cfg *config.Config, logger zerolog.Logger, req chart.OpenRequest, noScan bool) (*reporting.Report, error) {
	store, closeStore, err := backend.Open(ctx, cfg.Indexer, backend.ReadOnly, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	opts := chart.Options{
		Trades:              store,
		Logger:              &logger,
		DivergenceThreshold: cfg.Chart.DivergenceThreshold,
		Gaps:                cfg.Chart.GapConfig(),
		HistoryTimeout:      cfg.Chart.HistoryTimeout,
		ScanTimeout:         cfg.Chart.ScanTimeout,
	}
	if !noScan {
		rpc := ledger.NewHTTPClient(cfg.Ledger.RPCURL, cfg.Ledger.ClientOptions()...)
		opts.Scanner = chart.NewScanner(rpc, cfg.ScannerConfig(), &chart.ScannerOptions{Logger: &logger})
	}
	ctrl := chart.NewController(opts)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		_ = ctrl.Run(runCtx)
	}()

	if _, err := ctrl.Open(ctx, req); err != nil {
		return nil, fmt.Errorf("open market: %w", err)
	}
	if err := ctrl.WaitIdle(ctx); err != nil {
		return nil, fmt.Errorf("wait for scan: %w", err)
	}

	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	series, err := ctrl.Series(ctx)
	if err != nil {
		return nil, err
	}
	return reporting.NewGenerator(cfg.Chart.GapConfig()).Generate(snap, series), nil
}

func render(w io.Writer, format string, r *reporting.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "csv":
		_, err := io.WriteString(w, reporting.RenderCSV(r.Points))
		return err
	case "markdown", "md":
		_, err := io.WriteString(w, reporting.RenderMarkdown(r))
		return err
	default:
		return errors.New("unknown format " + strconv.Quote(format))
	}
}

func writeFiles(dir string, r *reporting.Report) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	files := map[string]string{
		"series.json": string(data),
		"series.csv":  reporting.RenderCSV(r.Points),
		"gaps.csv":    reporting.RenderGapsCSV(r.Gaps),
		"REPORT.md":   reporting.RenderMarkdown(r),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
