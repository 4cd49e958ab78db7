// Package store implements the persistence contracts on an embedded sqlite
// database. Every call opens a short transaction and commits or rolls back
// before returning; no transaction is ever held across a network wait.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS vouchers (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id       INTEGER NOT NULL,
	submitted_by   TEXT    NOT NULL,
	amount         REAL    NOT NULL,
	payment_method TEXT    NOT NULL,
	image_ref      TEXT    NOT NULL DEFAULT '',
	status         TEXT    NOT NULL DEFAULT 'PENDIENTE',
	branch_id      INTEGER,
	created_at     TIMESTAMP NOT NULL,
	decided_at     TIMESTAMP,
	decided_by     TEXT,
	reject_reason  TEXT
);
CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	order_id   INTEGER NOT NULL,
	sender_id  TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	type       TEXT    NOT NULL DEFAULT 'text',
	status     TEXT    NOT NULL,
	hash       TEXT    NOT NULL,
	created_at TIMESTAMP NOT NULL,
	read_at    TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_order ON messages(order_id);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT    NOT NULL,
	title      TEXT    NOT NULL,
	body       TEXT    NOT NULL,
	category   TEXT    NOT NULL,
	extra      TEXT    NOT NULL DEFAULT '{}',
	read       INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, read);

CREATE TABLE IF NOT EXISTS gps_pings (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id   INTEGER NOT NULL,
	courier_id TEXT    NOT NULL,
	lat        REAL    NOT NULL,
	lng        REAL    NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gps_order ON gps_pings(order_id, id);

CREATE TABLE IF NOT EXISTS orders (
	id          INTEGER PRIMARY KEY,
	customer_id TEXT NOT NULL,
	courier_id  TEXT
);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps the sqlite handle and implements every store contract.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema. Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying database handle.
func (s *DB) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
