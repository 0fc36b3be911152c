// Package migrations holds the indexer schema for each backend, applies it and
// checks that the trade table the chart reads has the expected columns.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schemaFS embed.FS

// TradeTable is the indexer table every backend provides.
const TradeTable = "indexer_trades"

// Backend names, matching the embedded directories.
const (
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// ErrSchemaMismatch is returned when the trade table is missing or lacks a column.
var ErrSchemaMismatch = errors.New("indexer schema mismatch")

// Migration is one embedded SQL file.
type Migration struct {
	Name string
	SQL  string
}

// Result lists the migrations applied by one run.
type Result struct {
	Backend string
	Applied []string
}

// Load returns the non-empty migrations for backend in lexical order.
func Load(backend string) ([]Migration, error) {
	entries, err := fs.ReadDir(schemaFS, backend)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", backend, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migs := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(schemaFS, backend+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		migs = append(migs, Migration{Name: name, SQL: string(data)})
	}
	return migs, nil
}

// checkColumns reports the first required column missing from have.
func checkColumns(backend string, have, want []string) error {
	if len(have) == 0 {
		return fmt.Errorf("%w: %s: table %s not found", ErrSchemaMismatch, backend, TradeTable)
	}
	present := make(map[string]struct{}, len(have))
	for _, c := range have {
		present[c] = struct{}{}
	}
	for _, c := range want {
		if _, ok := present[c]; !ok {
			return fmt.Errorf("%w: %s: %s has no column %s", ErrSchemaMismatch, backend, TradeTable, c)
		}
	}
	return nil
}
