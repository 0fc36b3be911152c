package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAddr                = ":8080"
	DefaultReadTimeout         = 15 * time.Second
	DefaultWriteTimeout        = 15 * time.Second
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "console"
	DefaultRPCURL              = "http://localhost:8545"
	DefaultPriceWord           = 1
	DefaultPriceDecimals       = 18
	DefaultLedgerTimeout       = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultPollInterval        = 4 * time.Second
	DefaultPollMaxBlocks       = 2000
	DefaultGapThreshold        = 120
	DefaultBreakInset          = 30
	DefaultDivergenceThreshold = 1e-4
	DefaultMaxBlockRange       = 10000
	DefaultBlocksPerSecond     = 0.5
	DefaultRangeMargin         = 1.25
	DefaultHistoryTimeout      = 15 * time.Second
	DefaultScanTimeout         = 60 * time.Second
	DefaultSubscriptionBuffer  = 256
	DefaultIndexerBackend      = "memory"
	DefaultRedisChannel        = "market-chart:notifications"
)

// ApplyDefaults fills unset fields with default values.
func (c *Config) ApplyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Ledger defaults
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = DefaultRPCURL
	}
	if c.Ledger.PriceWord == 0 {
		c.Ledger.PriceWord = DefaultPriceWord
	}
	if c.Ledger.PriceDecimals == 0 {
		c.Ledger.PriceDecimals = DefaultPriceDecimals
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = DefaultLedgerTimeout
	}
	if c.Ledger.MaxRetries == 0 {
		c.Ledger.MaxRetries = DefaultMaxRetries
	}
	if c.Ledger.PollInterval == 0 {
		c.Ledger.PollInterval = DefaultPollInterval
	}
	if c.Ledger.PollMaxBlocks == 0 {
		c.Ledger.PollMaxBlocks = DefaultPollMaxBlocks
	}

	// Chart defaults
	if c.Chart.GapThreshold == 0 {
		c.Chart.GapThreshold = DefaultGapThreshold
	}
	if c.Chart.BreakInset == 0 {
		c.Chart.BreakInset = DefaultBreakInset
	}
	if c.Chart.DivergenceThreshold == 0 {
		c.Chart.DivergenceThreshold = DefaultDivergenceThreshold
	}
	if c.Chart.MaxBlockRange == 0 {
		c.Chart.MaxBlockRange = DefaultMaxBlockRange
	}
	if c.Chart.BlocksPerSecond == 0 {
		c.Chart.BlocksPerSecond = DefaultBlocksPerSecond
	}
	if c.Chart.RangeMargin == 0 {
		c.Chart.RangeMargin = DefaultRangeMargin
	}
	if c.Chart.HistoryTimeout == 0 {
		c.Chart.HistoryTimeout = DefaultHistoryTimeout
	}
	if c.Chart.ScanTimeout == 0 {
		c.Chart.ScanTimeout = DefaultScanTimeout
	}
	if c.Chart.SubscriptionBuffer == 0 {
		c.Chart.SubscriptionBuffer = DefaultSubscriptionBuffer
	}

	// Indexer defaults
	if c.Indexer.Backend == "" {
		c.Indexer.Backend = DefaultIndexerBackend
	}

	// Notify defaults
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = DefaultRedisChannel
	}
}
