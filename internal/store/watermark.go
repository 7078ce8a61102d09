// Package store provides the Postgres-backed watermark lookup. The
// harvester depends only on the narrow scrape.WatermarkProvider
// capability; the loader owning the table lives elsewhere.
package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// pgxQuerier is the slice of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Config controls the Postgres connection for the watermark store.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

// PostgresWatermark reads the newest date_added known to the loader's
// table. It implements scrape.WatermarkProvider.
type PostgresWatermark struct {
	pool  pgxQuerier
	table string
}

// NewPostgresWatermark connects a pool and validates the table name.
func NewPostgresWatermark(ctx context.Context, cfg Config) (*PostgresWatermark, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "applicant_data"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresWatermark{pool: pool, table: table}, nil
}

// NewPostgresWatermarkWithPool constructs a store from an existing pool
// (primarily for testing).
func NewPostgresWatermarkWithPool(pool pgxQuerier, table string) (*PostgresWatermark, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "applicant_data"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresWatermark{pool: pool, table: table}, nil
}

// LatestKnownDate returns the maximum date_added in the loader's table,
// or nil when the table holds no rows yet.
func (s *PostgresWatermark) LatestKnownDate(ctx context.Context) (*time.Time, error) {
	var latest *time.Time
	query := fmt.Sprintf(`SELECT MAX(date_added) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return nil, fmt.Errorf("query latest date_added: %w", err)
	}
	return latest, nil
}

// Close releases the underlying pool resources.
func (s *PostgresWatermark) Close() {
	s.pool.Close()
}
