package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultApplicationName is reported in pg_stat_activity when none is configured.
const DefaultApplicationName = "market-chart-lab"

// PoolOptions tunes the indexer connection pool.
type PoolOptions struct {
	// MaxConns caps open connections. Zero keeps the pgx default.
	MaxConns int32
	// ReadOnly opens every session with default_transaction_read_only, for
	// processes that only query indexer history.
	ReadOnly bool
	// ApplicationName defaults to DefaultApplicationName.
	ApplicationName string
}

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
	readOnly bool
}

// NewPool creates a Postgres connection pool and verifies it with a ping.
// opts may be nil.
func NewPool(ctx context.Context, dsn string, opts *PoolOptions) (*Pool, error) {
	if opts == nil {
		opts = &PoolOptions{}
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	name := opts.ApplicationName
	if name == "" {
		name = DefaultApplicationName
	}
	config.ConnConfig.RuntimeParams["application_name"] = name
	if opts.ReadOnly {
		config.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool, readOnly: opts.ReadOnly}, nil
}

// ReadOnly reports whether the pool was opened for history reads only.
func (p *Pool) ReadOnly() bool {
	return p.readOnly
}

// TableColumns lists the columns of table in the current schema.
// A missing table yields no columns.
func (p *Pool) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := p.Query(ctx, `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position
	`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

const (
	pgErrUniqueViolation        = "23505"
	pgErrReadOnlySQLTransaction = "25006"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	return err != nil && pgErrorCode(err) == pgErrUniqueViolation
}

// isReadOnlyError checks if a write was rejected by a read-only session.
func isReadOnlyError(err error) bool {
	return err != nil && pgErrorCode(err) == pgErrReadOnlySQLTransaction
}
