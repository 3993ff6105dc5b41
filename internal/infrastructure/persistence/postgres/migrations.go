package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// MigrationFS is the schema, one goose file per version.
func MigrationFS() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory
	}
	return sub
}

// Migrator runs the embedded goose migrations over the connection's pool.
// Unlike the sqlite package it uses a goose.Provider, so no goose globals
// are touched and both stores can migrate in one process.
type Migrator struct {
	conn *Connection
}

func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{conn: conn}
}

// run opens a database/sql view of the pool for the duration of fn.
func (m *Migrator) run(fn func(*goose.Provider) error) error {
	if m.conn.closed.Load() {
		return ErrConnectionClosed
	}
	db := stdlib.OpenDBFromPool(m.conn.pool)
	defer db.Close()

	p, err := newProvider(db)
	if err != nil {
		return err
	}
	return fn(p)
}

func newProvider(db *sql.DB) (*goose.Provider, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, MigrationFS())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return p, nil
}

// Migrate applies every pending version in order.
func (m *Migrator) Migrate(ctx context.Context) error {
	return m.run(func(p *goose.Provider) error {
		if _, err := p.Up(ctx); err != nil {
			return fmt.Errorf("%w: up: %v", ErrMigrationFailed, err)
		}
		return nil
	})
}

// Rollback reverts the newest applied version. Nothing applied is not an error.
func (m *Migrator) Rollback(ctx context.Context) error {
	return m.run(func(p *goose.Provider) error {
		_, err := p.Down(ctx)
		if err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
			return fmt.Errorf("%w: down: %v", ErrMigrationFailed, err)
		}
		return nil
	})
}

// Version returns the newest applied version, 0 for an empty database.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var v int64
	err := m.run(func(p *goose.Provider) error {
		var err error
		v, err = p.GetDBVersion(ctx)
		return err
	})
	return v, err
}
