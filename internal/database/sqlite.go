// Package database owns opening the SQL connection the relational queue
// engine stores its schema in; internal/queue/sqlstore owns the schema and
// queries themselves, mirroring the teacher's split between a database
// package that owns pool construction and a domain package that owns its
// tables. Grounded on a starbucks-mugs-style SQLite queue's pool setup
// (single-writer pool, WAL journal mode, NORMAL synchronous) adapted from
// Postgres connection pooling to SQLite's single-process file model.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// sqliteScheme is the DSN prefix accepted for the relational engine, e.g.
// "sqlite:///var/lib/burrow/burrow.db" or "sqlite://" for an in-memory
// database.
const sqliteScheme = "sqlite://"

// NewSQLiteDB opens dsn (a "sqlite://path" URL; an empty path selects an
// in-memory database) and configures it for single-writer access: SQLite
// does not support concurrent writers, so the pool is capped at one open
// connection and put into WAL mode so readers are not blocked by a writer
// mid-transaction.
func NewSQLiteDB(ctx context.Context, dsn string) (*sql.DB, error) {
	path, err := sqlitePath(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return db, nil
}

func sqlitePath(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, sqliteScheme) {
		return "", fmt.Errorf("unsupported dsn %q: expected %q prefix", dsn, sqliteScheme)
	}
	path := strings.TrimPrefix(dsn, sqliteScheme)
	if path == "" {
		return ":memory:", nil
	}
	return path, nil
}
