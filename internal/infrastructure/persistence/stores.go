// Package persistence selects and opens the storage backend. Both backends
// implement the same domain repositories; the process code never imports a
// driver package directly.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alem-hub/alem-gamification/internal/domain/badge"
	"github.com/alem-hub/alem-gamification/internal/domain/leaderboard"
	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
	"github.com/alem-hub/alem-gamification/internal/domain/streak"
	"github.com/alem-hub/alem-gamification/internal/domain/student"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/alem-gamification/internal/infrastructure/persistence/sqlite"
)

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects a backend.
type Options struct {
	Driver string

	// PostgresURL and Pool are used by the postgres driver.
	PostgresURL string
	Pool        postgres.PoolOptions

	// SQLitePath is used by the sqlite driver (file path or ":memory:").
	SQLitePath string
}

// Stores bundles the repositories of one backend.
type Stores struct {
	Driver string

	Ledger      ledger.Repository
	Badges      badge.Repository
	Streaks     streak.Repository
	Roster      student.Repository
	Leaderboard leaderboard.Repository

	ping     func(ctx context.Context) error
	migrate  func(ctx context.Context) error
	rollback func(ctx context.Context) error
	version  func(ctx context.Context) (int64, error)
	close    func() error
}

// ErrUnknownDriver is returned by Open for a driver other than postgres or sqlite.
var ErrUnknownDriver = errors.New("persistence: unknown driver")

// Open connects to the configured backend. Postgres is not migrated here; call
// Migrate (the server does at startup, the admin tool on demand). SQLite
// files are migrated on open.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	switch opts.Driver {
	case DriverPostgres:
		conn, err := postgres.Open(ctx, opts.PostgresURL, opts.Pool)
		if err != nil {
			return nil, err
		}
		return newPostgresStores(conn), nil

	case DriverSQLite, "":
		db, err := sqlite.Open(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return newSQLiteStores(db), nil

	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownDriver, opts.Driver)
	}
}

func newPostgresStores(conn *postgres.Connection) *Stores {
	migrator := postgres.NewMigrator(conn)
	return &Stores{
		Driver:      DriverPostgres,
		Ledger:      postgres.NewLedgerRepository(conn),
		Badges:      postgres.NewBadgeRepository(conn),
		Streaks:     postgres.NewStreakRepository(conn),
		Roster:      postgres.NewStudentRepository(conn),
		Leaderboard: postgres.NewLeaderboardRepository(conn),
		ping:        conn.Ping,
		migrate:     migrator.Migrate,
		rollback:    migrator.Rollback,
		version:     migrator.Version,
		close: func() error {
			conn.Close()
			return nil
		},
	}
}

// NewSQLiteStores wraps an already opened SQLite database (tests use
// ":memory:" through sqlite.Open).
func NewSQLiteStores(db *sql.DB) *Stores {
	return newSQLiteStores(db)
}

func newSQLiteStores(db *sql.DB) *Stores {
	return &Stores{
		Driver:      DriverSQLite,
		Ledger:      sqlite.NewLedgerStore(db),
		Badges:      sqlite.NewBadgeStore(db),
		Streaks:     sqlite.NewStreakStore(db),
		Roster:      sqlite.NewStudentStore(db),
		Leaderboard: sqlite.NewLeaderboardStore(db),
		ping:        db.PingContext,
		migrate:     func(ctx context.Context) error { return sqlite.Migrate(ctx, db) },
		rollback:    func(ctx context.Context) error { return sqlite.Rollback(ctx, db) },
		version:     func(ctx context.Context) (int64, error) { return sqlite.Version(ctx, db) },
		close:       db.Close,
	}
}

// Ping checks connectivity.
func (s *Stores) Ping(ctx context.Context) error { return s.ping(ctx) }

// Migrate applies pending migrations.
func (s *Stores) Migrate(ctx context.Context) error { return s.migrate(ctx) }

// Rollback reverts the most recent migration.
func (s *Stores) Rollback(ctx context.Context) error { return s.rollback(ctx) }

// Version returns the highest applied migration.
func (s *Stores) Version(ctx context.Context) (int64, error) { return s.version(ctx) }

// Close releases the connection.
func (s *Stores) Close() error { return s.close() }
