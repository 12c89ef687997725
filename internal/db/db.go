// Package db opens the SQLite database and applies the embedded migrations.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at dbPath and brings the
// schema up to date. A nil logger disables migration logging.
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps the pragmas applied.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if err := db.markInterruptedJobs(ctx); err != nil && logger != nil {
		logger.Warn("failed to mark interrupted jobs", "error", err)
	}
	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// migrate applies every migration file not yet recorded in _migrations, in
// file name order, each inside its own transaction.
func (d *DB) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, path := range names {
		name := filepath.Base(path)
		if d.applied(ctx, name) {
			continue
		}

		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}

		if d.logger != nil {
			d.logger.Info("applied migration", "name", name)
		}
	}
	return nil
}

func (d *DB) applied(ctx context.Context, name string) bool {
	var one int
	err := d.conn.QueryRowContext(ctx,
		"SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&one)
	if err != nil {
		return false
	}
	err = d.conn.QueryRowContext(ctx, "SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&one)
	return err == nil
}

// markInterruptedJobs fails jobs that were still being polled when the
// process stopped. Their outcome is unknown and nothing resumes them.
func (d *DB) markInterruptedJobs(ctx context.Context) error {
	res, err := d.conn.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', message = 'interrupted by restart', updated_at = ?
		WHERE status IN ('submitted', 'polling')
	`, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 && d.logger != nil {
		d.logger.Warn("marked interrupted jobs as failed", "count", n)
	}
	return nil
}
