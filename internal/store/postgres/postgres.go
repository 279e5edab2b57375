// Package postgres implements the store contract on top of PostgreSQL.
// Every logical database is a row in "databases" and its documents live in
// "documents" as JSONB, keyed by (db_name, id). Views are answered by the
// in-process view functions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/dmitrijs2005/lazyboy/internal/store"
	"github.com/dmitrijs2005/lazyboy/internal/store/postgres/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Connection is a postgres-backed store.Connection.
type Connection struct {
	db     *sql.DB
	views  store.ViewFuncs
	logger logging.Logger
}

// NewConnection wraps an open *sql.DB.
func NewConnection(db *sql.DB, views store.ViewFuncs, logger logging.Logger) *Connection {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Connection{db: db, views: views, logger: logger}
}

// Open connects to dsn through the pgx driver and applies the schema
// migrations.
func Open(ctx context.Context, dsn string, views store.ViewFuncs, logger logging.Logger) (*Connection, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	c := NewConnection(db, views, logger)
	if err := c.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return c, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded goose migrations.
func (c *Connection) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, c.db, "."); err != nil {
		return err
	}
	c.logger.Debug(ctx, "postgres migrations applied")
	return nil
}

func (c *Connection) Database(name string) store.Database {
	return &Database{conn: c, name: name}
}

func (c *Connection) Close() error {
	return c.db.Close()
}
