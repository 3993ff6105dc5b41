// Package postgres implements the production persistence layer: the XP
// ledger, badge catalog and awards, streak rows and the roster, all on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alem-hub/alem-gamification/internal/domain/shared"
)

// ErrConnectionClosed is returned by every call after Close.
var ErrConnectionClosed = errors.New("postgres: connection pool is closed")

// ErrMigrationFailed wraps a failed up or down step.
var ErrMigrationFailed = errors.New("postgres: migration failed")

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION POOL
// ══════════════════════════════════════════════════════════════════════════════

// PoolOptions tunes the pgx pool. Zero fields keep the URL's or pgx's values.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultPoolOptions is what the admin tool uses: a handful of short statements.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{MaxConns: 4, MinConns: 1}
}

func (o PoolOptions) apply(cfg *pgxpool.Config) {
	if o.MaxConns > 0 {
		cfg.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 {
		cfg.MinConns = o.MinConns
	}
	if o.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = o.MaxConnLifetime
	}
	if o.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = o.MaxConnIdleTime
	}
	cfg.HealthCheckPeriod = time.Minute
}

// Connection is the pool shared by all repositories of one process.
type Connection struct {
	pool   *pgxpool.Pool
	closed atomic.Bool
}

// Open creates a pool from a database URL and verifies it with a ping.
// A failed ping is returned unwrapped by any marker, so callers may retry it.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Connection, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse database URL: %w", err)
	}
	opts.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Connection{pool: pool}, nil
}

// Close releases the pool. Safe to call twice.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.pool.Close()
	}
}

// Ping backs the "store" readiness check.
func (c *Connection) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return c.pool.Ping(ctx)
}

func (c *Connection) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if c.closed.Load() {
		return pgconn.CommandTag{}, ErrConnectionClosed
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c *Connection) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if c.closed.Load() {
		return nil, ErrConnectionClosed
	}
	return c.pool.Query(ctx, sql, args...)
}

// QueryRow defers a closed-pool error to Scan, like pgx does for query errors.
func (c *Connection) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if c.closed.Load() {
		return errRow{ErrConnectionClosed}
	}
	return c.pool.QueryRow(ctx, sql, args...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

// WithTx runs fn in a read-committed transaction: commit on nil, rollback otherwise.
func (c *Connection) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return pgx.BeginTxFunc(ctx, c.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// storageError maps a pgx error onto the domain taxonomy. Integrity violations
// (SQLSTATE class 23) are caller errors and not worth retrying; everything
// else is treated as the store being unavailable.
func storageError(domain, op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return shared.WrapError(domain, op, shared.ErrAlreadyExists, pgErr.ConstraintName, err)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			return shared.WrapError(domain, op, shared.ErrInvalidInput, "constraint violated: "+pgErr.ConstraintName, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return shared.WrapError(domain, op, shared.ErrTimeout, "query timed out", err)
	}
	return shared.Unavailable(domain, op, err)
}

// IsNoRows reports pgx's empty-result error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
