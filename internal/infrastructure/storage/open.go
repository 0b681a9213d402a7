package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Database drivers.
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder style, schema and array handling.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect accepts the configured driver name.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// Open connects to the configured database and applies the schema.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case DialectPostgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return migrated(ctx, db, dialect)
	case DialectSQLite:
		if dsn == "" {
			dsn = "resellbot.db"
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create database dir: %w", err)
				}
			}
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection keeps :memory: databases alive and serializes writers.
		db.SetMaxOpenConns(1)
		for _, pragma := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply %s: %w", pragma, err)
			}
		}
		return migrated(ctx, db, dialect)
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

func migrated(ctx context.Context, db *sql.DB, dialect Dialect) (*sql.DB, error) {
	if err := migrate(ctx, db, dialect); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	statements := sqliteSchema
	if dialect == DialectPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		raw_price TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'normal',
		filter_status TEXT NOT NULL DEFAULT 'pending',
		filter_reason TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		payload TEXT,
		message_sent BOOLEAN NOT NULL DEFAULT 0,
		deleted BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_dispatch ON listings (category, filter_status)`,
	`CREATE TABLE IF NOT EXISTS sent_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		listing_id TEXT NOT NULL,
		status TEXT NOT NULL,
		sent_at TEXT NOT NULL,
		log TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_messages_listing ON sent_messages (listing_id)`,
	`CREATE TABLE IF NOT EXISTS message_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		raw_price TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT 'normal',
		filter_status TEXT NOT NULL DEFAULT 'pending',
		filter_reason TEXT NOT NULL DEFAULT '',
		session_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB,
		message_sent BOOLEAN NOT NULL DEFAULT FALSE,
		deleted BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_dispatch ON listings (category, filter_status)`,
	`CREATE TABLE IF NOT EXISTS sent_messages (
		id BIGSERIAL PRIMARY KEY,
		listing_id TEXT NOT NULL,
		status TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		log TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_messages_listing ON sent_messages (listing_id)`,
	`CREATE TABLE IF NOT EXISTS message_templates (
		id BIGSERIAL PRIMARY KEY,
		content TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
}
