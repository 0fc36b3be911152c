package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	if c.Ledger.RPCURL == "" {
		return errors.New("ledger.rpc_url is required")
	}
	if c.Ledger.PriceWord < 0 {
		return errors.New("ledger.price_word must be >= 0")
	}
	if c.Ledger.PriceDecimals < 1 {
		return errors.New("ledger.price_decimals must be >= 1")
	}

	if c.Chart.BreakInset < 1 {
		return errors.New("chart.break_inset must be >= 1")
	}
	if c.Chart.GapThreshold < 2*c.Chart.BreakInset {
		return fmt.Errorf("chart.gap_threshold (%d) must be at least twice chart.break_inset (%d)",
			c.Chart.GapThreshold, c.Chart.BreakInset)
	}
	if c.Chart.DivergenceThreshold <= 0 {
		return errors.New("chart.divergence_threshold must be > 0")
	}
	if c.Chart.BlocksPerSecond <= 0 {
		return errors.New("chart.blocks_per_second must be > 0")
	}
	if c.Chart.RangeMargin < 1 {
		return errors.New("chart.range_margin must be >= 1")
	}

	switch c.Indexer.Backend {
	case "memory":
	case "postgres":
		if c.Indexer.PostgresDSN == "" {
			return errors.New("indexer.postgres_dsn is required for the postgres backend")
		}
	case "clickhouse":
		if c.Indexer.ClickhouseDSN == "" {
			return errors.New("indexer.clickhouse_dsn is required for the clickhouse backend")
		}
	default:
		return fmt.Errorf("indexer.backend must be memory, postgres or clickhouse, got %q", c.Indexer.Backend)
	}

	return nil
}
