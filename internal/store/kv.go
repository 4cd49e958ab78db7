package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/comandago/comanda/pkg/store"
)

// Config implements store.ConfigStore over the shared handle. It performs
// no caching itself; the process-local cache lives in the config package.
type Config struct {
	base *DB
}

// Config returns the key/value configuration store view.
func (s *DB) Config() *Config { return &Config{base: s} }

// GetValue returns the value for key, or def when the key is absent.
func (c *Config) GetValue(ctx context.Context, key, def string) (string, error) {
	row := c.base.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return value, nil
}

// SetValue upserts the value for key.
func (c *Config) SetValue(ctx context.Context, key, value string) error {
	return c.base.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO config (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
}

// Verify the config contract at compile time
var _ store.ConfigStore = (*Config)(nil)
