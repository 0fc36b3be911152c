package backend

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-chart-lab/internal/config"
	"market-chart-lab/internal/storage/memory"
)

func TestOpen_Memory(t *testing.T) {
	store, cleanup, err := Open(context.Background(), config.IndexerConfig{Backend: "memory"}, ReadWrite, zerolog.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.TradeStore{}, store)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), config.IndexerConfig{Backend: "sqlite"}, ReadOnly, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite")
}

func TestOpen_BadClickhouseDSN(t *testing.T) {
	_, _, err := Open(context.Background(), config.IndexerConfig{Backend: "clickhouse", ClickhouseDSN: "clickhouse://"}, ReadOnly, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpen_BadPostgresDSN(t *testing.T) {
	_, _, err := Open(context.Background(), config.IndexerConfig{Backend: "postgres", PostgresDSN: "postgres://%zz"}, ReadOnly, zerolog.Nop())
	assert.Error(t, err)
}

func TestAccess_String(t *testing.T) {
	assert.Equal(t, "read-only", ReadOnly.String())
	assert.Equal(t, "read-write", ReadWrite.String())
}
