package config

import "time"

// Config is the root configuration for the chart daemon and tools.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Chart   ChartConfig   `yaml:"chart"`
	Indexer IndexerConfig `yaml:"indexer"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LogConfig selects log level and output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// LedgerConfig holds the EVM node and market contract settings.
type LedgerConfig struct {
	RPCURL        string        `yaml:"rpc_url"`
	WSURL         string        `yaml:"ws_url"`
	Contract      string        `yaml:"contract"`
	BuySignature  string        `yaml:"buy_signature"`
	SellSignature string        `yaml:"sell_signature"`
	PriceWord     int           `yaml:"price_word"`
	PriceDecimals int32         `yaml:"price_decimals"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollMaxBlocks uint64        `yaml:"poll_max_blocks"`
}

// ChartConfig holds the reconciliation engine constants.
type ChartConfig struct {
	GapThreshold        int64         `yaml:"gap_threshold"` // seconds
	BreakInset          int64         `yaml:"break_inset"`   // seconds
	DivergenceThreshold float64       `yaml:"divergence_threshold"`
	MaxBlockRange       uint64        `yaml:"max_block_range"`
	BlocksPerSecond     float64       `yaml:"blocks_per_second"`
	RangeMargin         float64       `yaml:"range_margin"`
	HistoryTimeout      time.Duration `yaml:"history_timeout"`
	ScanTimeout         time.Duration `yaml:"scan_timeout"`
	SubscriptionBuffer  int           `yaml:"subscription_buffer"`
}

// IndexerConfig selects the historical indexer backend.
type IndexerConfig struct {
	Backend       string `yaml:"backend"` // memory | postgres | clickhouse
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	// PostgresMaxConns caps the Postgres pool; 0 keeps the driver default.
	PostgresMaxConns int32 `yaml:"postgres_max_conns"`
	// Migrate applies the embedded development schema at startup.
	Migrate bool `yaml:"migrate"`
	// RecordLive writes ledger trades seen by the daemon into the indexer.
	RecordLive bool `yaml:"record_live"`
}

// NotifyConfig holds notification bus settings.
type NotifyConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig enables the cross-process relay when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}
