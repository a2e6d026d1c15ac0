// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure-Go translation of SQLite — no CGo, no C
// toolchain, cross-compiles everywhere. The database is a single file (or
// ":memory:" in tests), which is all a single-server deployment needs; the
// interfaces in the repository package keep a later move to Postgres
// contained to this directory.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rdp/drivex-backend/internal/repository"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements the repository
// interfaces.
type DB struct {
	conn *sql.DB
}

// New opens the database, applies the pragmas, and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time, and the foreign_keys pragma is
	// per-connection. A single pooled connection keeps both consistent —
	// and keeps ":memory:" pointing at one database instead of one per
	// connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — required for a
	// server handling parallel requests on one database file.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are off by default in SQLite; files.user_id needs them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			auth_provider TEXT NOT NULL CHECK (auth_provider IN ('LOCAL', 'GOOGLE'))
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL REFERENCES users(id),
			filename     TEXT NOT NULL,
			storage_path TEXT NOT NULL UNIQUE,
			url          TEXT NOT NULL,
			mime_type    TEXT NOT NULL,
			size_bytes   INTEGER NOT NULL CHECK (size_bytes > 0),
			uploaded_at  DATETIME NOT NULL,
			is_deleted   INTEGER NOT NULL DEFAULT 0,
			deleted_at   DATETIME,
			description  TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_files_user_uploaded ON files(user_id, uploaded_at DESC);
		CREATE INDEX IF NOT EXISTS idx_files_user_deleted ON files(user_id, is_deleted);
	`)
	if err != nil {
		return fmt.Errorf("creating files table: %w", err)
	}

	return nil
}

// isUniqueViolation detects a unique-constraint failure so callers can map
// it to repository.ErrDuplicate. SQLite reports these as "UNIQUE constraint
// failed: <table>.<column>".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ repository.UserRepository = (*DB)(nil)
var _ repository.FileRepository = (*DB)(nil)
