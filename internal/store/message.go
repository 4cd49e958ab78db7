package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/comandago/comanda/pkg/store"
)

// Messages implements store.MessageStore over the shared handle.
type Messages struct {
	base *DB
}

// Messages returns the chat message store view.
func (s *DB) Messages() *Messages { return &Messages{base: s} }

// Insert stores a new chat message.
func (m *Messages) Insert(ctx context.Context, msg store.Message) error {
	return m.base.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, order_id, sender_id, body, type, status, hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, msg.OrderID, msg.SenderID, msg.Body, msg.Type, msg.Status, msg.Hash, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		return nil
	})
}

// Get returns the message by id, or store.ErrNotFound.
func (m *Messages) Get(ctx context.Context, id string) (store.Message, error) {
	row := m.base.db.QueryRowContext(ctx, `
		SELECT id, order_id, sender_id, body, type, status, hash, created_at, read_at
		FROM messages WHERE id = ?`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Message{}, store.ErrNotFound
	}
	return msg, err
}

// UpdateStatus moves a message through its delivery lifecycle.
func (m *Messages) UpdateStatus(ctx context.Context, id, status string, readAt *time.Time) error {
	return m.base.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE messages SET status = ?, read_at = COALESCE(?, read_at) WHERE id = ?`,
			status, readAt, id)
		if err != nil {
			return fmt.Errorf("update message %s: %w", id, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// ListByOrder returns all messages on an order, oldest first.
func (m *Messages) ListByOrder(ctx context.Context, orderID int64) ([]store.Message, error) {
	rows, err := m.base.db.QueryContext(ctx, `
		SELECT id, order_id, sender_id, body, type, status, hash, created_at, read_at
		FROM messages WHERE order_id = ? ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func scanMessage(row scanner) (store.Message, error) {
	var msg store.Message
	var readAt sql.NullTime

	err := row.Scan(&msg.ID, &msg.OrderID, &msg.SenderID, &msg.Body, &msg.Type,
		&msg.Status, &msg.Hash, &msg.CreatedAt, &readAt)
	if err != nil {
		return store.Message{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		msg.ReadAt = &t
	}
	return msg, nil
}

// Verify the message contract at compile time
var _ store.MessageStore = (*Messages)(nil)
