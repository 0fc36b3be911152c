package migrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	chstore "market-chart-lab/internal/storage/clickhouse"
)

// Columns the ClickHouse trade store reads and writes.
var clickhouseTradeColumns = []string{"market_id", "tx_hash", "block_time", "yes_price"}

// ApplyClickhouse creates the DSN's database when missing, applies the embedded
// ClickHouse schema statement by statement and verifies the trade table.
// The returned connection targets the DSN's database.
func ApplyClickhouse(ctx context.Context, dsn string, logger zerolog.Logger) (*chstore.Conn, Result, error) {
	res := Result{Backend: BackendClickhouse}
	migs, err := Load(BackendClickhouse)
	if err != nil {
		return nil, res, err
	}

	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, res, err
	}
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, res, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	err = admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName))
	admin.Close()
	if err != nil {
		return nil, res, fmt.Errorf("create database %s: %w", dbName, err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, res, fmt.Errorf("connect clickhouse db: %w", err)
	}

	// The native protocol takes one statement per Exec.
	for _, m := range migs {
		for _, stmt := range splitStatements(m.SQL) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, res, fmt.Errorf("apply migration %s: %w", m.Name, err)
			}
		}
		res.Applied = append(res.Applied, m.Name)
		logger.Debug().Str("backend", BackendClickhouse).Str("migration", m.Name).Msg("migration applied")
	}

	if err := VerifyClickhouse(ctx, conn); err != nil {
		conn.Close()
		return nil, res, err
	}
	return conn, res, nil
}

// VerifyClickhouse checks the trade table without changing the schema.
func VerifyClickhouse(ctx context.Context, conn *chstore.Conn) error {
	cols, err := conn.TableColumns(ctx, TradeTable)
	if err != nil {
		return err
	}
	return checkColumns(BackendClickhouse, cols, clickhouseTradeColumns)
}

// splitStatements splits SQL on semicolons outside single-quoted literals.
// Whole-line "--" comments are dropped; a doubled quote inside a literal
// toggles the quote state twice and so stays inside it.
func splitStatements(sql string) []string {
	var (
		stmts  []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(sql, "\n") {
		if trimmed := strings.TrimSpace(line); !quoted && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			continue
		}
		for i := 0; i < len(line); i++ {
			switch ch := line[i]; {
			case ch == '\'':
				quoted = !quoted
				cur.WriteByte(ch)
			case ch == ';' && !quoted:
				flush()
			default:
				cur.WriteByte(ch)
			}
		}
		cur.WriteByte('\n')
	}
	flush()
	return stmts
}

func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
