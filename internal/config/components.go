package config

import (
	"market-chart-lab/internal/chart"
	"market-chart-lab/internal/ledger"
)

// DecoderConfig maps the ledger section onto a log decoder configuration.
func (c LedgerConfig) DecoderConfig() ledger.DecoderConfig {
	return ledger.DecoderConfig{
		Contract:       c.Contract,
		BuySignature:   c.BuySignature,
		SellSignature:  c.SellSignature,
		PriceWordIndex: c.PriceWord,
		PriceDecimals:  c.PriceDecimals,
	}
}

// ClientOptions returns the HTTP RPC client options.
func (c LedgerConfig) ClientOptions() []ledger.ClientOption {
	return []ledger.ClientOption{
		ledger.WithTimeout(c.Timeout),
		ledger.WithMaxRetries(c.MaxRetries),
	}
}

// ScannerConfig builds the gap recovery scanner configuration.
func (c *Config) ScannerConfig() chart.ScannerConfig {
	return chart.ScannerConfig{
		MaxBlockRange:   c.Chart.MaxBlockRange,
		BlocksPerSecond: c.Chart.BlocksPerSecond,
		RangeMargin:     c.Chart.RangeMargin,
		Decoder:         c.Ledger.DecoderConfig(),
	}
}

// GapConfig builds the gap annotation configuration.
func (c ChartConfig) GapConfig() chart.GapConfig {
	return chart.GapConfig{Threshold: c.GapThreshold, Inset: c.BreakInset}
}
