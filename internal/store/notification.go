package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/comandago/comanda/pkg/store"
)

// Notifications implements store.NotificationStore over the shared handle.
type Notifications struct {
	base *DB
}

// Notifications returns the notification store view.
func (s *DB) Notifications() *Notifications { return &Notifications{base: s} }

// Insert stores a new notification. Extra data is serialized as JSON.
func (n *Notifications) Insert(ctx context.Context, notification store.Notification) error {
	extra := notification.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	encoded, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encode notification extra: %w", err)
	}

	return n.base.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (id, user_id, title, body, category, extra, read, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			notification.ID, notification.UserID, notification.Title, notification.Body,
			notification.Category, string(encoded), notification.Read, notification.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		return nil
	})
}

// Unread returns a user's unread notifications, newest first.
func (n *Notifications) Unread(ctx context.Context, userID string) ([]store.Notification, error) {
	rows, err := n.base.db.QueryContext(ctx, `
		SELECT id, user_id, title, body, category, extra, read, created_at
		FROM notifications WHERE user_id = ? AND read = 0
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list unread notifications: %w", err)
	}
	defer rows.Close()

	var out []store.Notification
	for rows.Next() {
		var notification store.Notification
		var extra string
		if err := rows.Scan(&notification.ID, &notification.UserID, &notification.Title,
			&notification.Body, &notification.Category, &extra, &notification.Read,
			&notification.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(extra), &notification.Extra); err != nil {
			return nil, fmt.Errorf("decode notification extra: %w", err)
		}
		out = append(out, notification)
	}
	return out, rows.Err()
}

// MarkRead flips the read flag, or returns store.ErrNotFound.
func (n *Notifications) MarkRead(ctx context.Context, id string) error {
	return n.base.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("mark notification %s read: %w", id, err)
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

// Verify the notification contract at compile time
var _ store.NotificationStore = (*Notifications)(nil)
