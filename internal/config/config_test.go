package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("CHART_RPC_URL", "http://node:8545")
	t.Setenv("CHART_PG_DSN", "postgres://u:p@db:5432/chart")

	path := writeTempFile(t, `
ledger:
  rpc_url: ${CHART_RPC_URL}
  contract: "0xabc"
  poll_interval: 2s
indexer:
  backend: postgres
  postgres_dsn: ${CHART_PG_DSN}
chart:
  gap_threshold: 300
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", cfg.Ledger.RPCURL)
	assert.Equal(t, "0xabc", cfg.Ledger.Contract)
	assert.Equal(t, 2*time.Second, cfg.Ledger.PollInterval)
	assert.Equal(t, "postgres://u:p@db:5432/chart", cfg.Indexer.PostgresDSN)
	assert.Equal(t, int64(300), cfg.Chart.GapThreshold)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("chart: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config yaml")
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, int64(120), cfg.Chart.GapThreshold)
	assert.Equal(t, int64(30), cfg.Chart.BreakInset)
	assert.Equal(t, 1e-4, cfg.Chart.DivergenceThreshold)
	assert.Equal(t, uint64(10000), cfg.Chart.MaxBlockRange)
	assert.Equal(t, 0.5, cfg.Chart.BlocksPerSecond)
	assert.Equal(t, 1.25, cfg.Chart.RangeMargin)
	assert.Equal(t, int32(18), cfg.Ledger.PriceDecimals)
	assert.Equal(t, "memory", cfg.Indexer.Backend)
	assert.Equal(t, DefaultRedisChannel, cfg.Notify.Redis.Channel)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{Chart: ChartConfig{GapThreshold: 600, BreakInset: 60}}
	cfg.ApplyDefaults()

	assert.Equal(t, int64(600), cfg.Chart.GapThreshold)
	assert.Equal(t, int64(60), cfg.Chart.BreakInset)
}

func TestLoadAndValidate_EmptyPath(t *testing.T) {
	cfg, err := LoadAndValidate("")
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"inset too wide", func(c *Config) { c.Chart.BreakInset = 70 }, "chart.gap_threshold"},
		{"margin below one", func(c *Config) { c.Chart.RangeMargin = 0.9 }, "chart.range_margin"},
		{"negative divergence", func(c *Config) { c.Chart.DivergenceThreshold = -1 }, "chart.divergence_threshold"},
		{"postgres without dsn", func(c *Config) { c.Indexer.Backend = "postgres" }, "indexer.postgres_dsn"},
		{"clickhouse without dsn", func(c *Config) { c.Indexer.Backend = "clickhouse" }, "indexer.clickhouse_dsn"},
		{"unknown backend", func(c *Config) { c.Indexer.Backend = "sqlite" }, "indexer.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadAndValidate_WrapsValidationError(t *testing.T) {
	path := writeTempFile(t, "indexer:\n  backend: clickhouse\n")

	_, err := LoadAndValidate(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestComponentConfigs(t *testing.T) {
	cfg := &Config{Ledger: LedgerConfig{Contract: "0xC0FFEE"}}
	cfg.ApplyDefaults()

	dec := cfg.Ledger.DecoderConfig()
	assert.Equal(t, "0xC0FFEE", dec.Contract)
	assert.Equal(t, 1, dec.PriceWordIndex)
	assert.Equal(t, int32(18), dec.PriceDecimals)

	sc := cfg.ScannerConfig()
	assert.Equal(t, uint64(10000), sc.MaxBlockRange)
	assert.Equal(t, dec, sc.Decoder)

	gaps := cfg.Chart.GapConfig()
	assert.True(t, gaps.Valid())
	assert.Equal(t, int64(120), gaps.Threshold)
	assert.Len(t, cfg.Ledger.ClientOptions(), 2)
}
