// Package repository persists processing records and run history over
// database/sql, on sqlite for single-node installs or postgres behind a
// pgx pool. Queries use $N placeholders in first-appearance order, which
// both drivers bind positionally.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/docflow/internal/common"
)

// DB wraps the SQL handle together with the dialect it was opened for.
// For postgres the underlying pgx pool is retained for shutdown.
type DB struct {
	SQL    *sql.DB
	pool   *pgxpool.Pool
	driver string
	logger *slog.Logger
}

// Open connects per the configured driver and verifies the connection with
// a ping.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", cfg.Driver)

	d := &DB{driver: cfg.Driver, logger: logger}
	switch cfg.Driver {
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("sql open: %w", err)
		}
		// modernc sqlite serializes writes; a single connection avoids
		// SQLITE_BUSY under concurrent readers.
		db.SetMaxOpenConns(1)
		d.SQL = db
	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "docflow"
		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("create pool: %w", err)
		}
		d.pool = pool
		d.SQL = stdlib.OpenDBFromPool(pool)
	default:
		return nil, fmt.Errorf("unsupported database driver %q: %w", cfg.Driver, common.ErrInvalidInput)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := d.SQL.PingContext(pingCtx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	logger.Info("successfully connected to database")
	return d, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close() {
	if d.SQL != nil {
		if err := d.SQL.Close(); err != nil {
			d.logger.Error("failed to close database", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
}

// Ping checks connectivity, for the health endpoint.
func (d *DB) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

// Postgres reports whether the handle talks to postgres rather than sqlite.
func (d *DB) Postgres() bool {
	return d.driver == "postgres"
}

// EnsureSchema creates the records and runs tables when missing. The DDL is
// shared by both dialects. Timestamps are declared TIMESTAMP, which the
// sqlite driver round-trips as time.Time, and are always written in UTC.
func (d *DB) EnsureSchema(ctx context.Context) error {
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if d.Postgres() {
		// Serialize bootstrap DDL across concurrent startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030201)); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	kind TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	category TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	summary TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL DEFAULT '',
	run_id TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_category ON records(category);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	processed INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	elapsed_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	d.logger.Debug("db.schema.ok")
	return nil
}
