package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/comandago/comanda/pkg/store"
)

// Orders implements store.OrderStore over the shared handle.
type Orders struct {
	base *DB
}

// Orders returns the order store view.
func (s *DB) Orders() *Orders { return &Orders{base: s} }

// Upsert records an order's parties. Used when orders are created or a
// courier is assigned.
func (o *Orders) Upsert(ctx context.Context, parties store.OrderParties) error {
	return o.base.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, customer_id, courier_id) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET customer_id = excluded.customer_id, courier_id = excluded.courier_id`,
			parties.OrderID, parties.CustomerID, parties.CourierID)
		return err
	})
}

// Parties returns who owns and who delivers an order, or store.ErrNotFound.
func (o *Orders) Parties(ctx context.Context, orderID int64) (store.OrderParties, error) {
	row := o.base.db.QueryRowContext(ctx,
		`SELECT id, customer_id, courier_id FROM orders WHERE id = ?`, orderID)

	var parties store.OrderParties
	var courierID sql.NullString
	err := row.Scan(&parties.OrderID, &parties.CustomerID, &courierID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.OrderParties{}, store.ErrNotFound
	}
	if err != nil {
		return store.OrderParties{}, err
	}
	if courierID.Valid {
		s := courierID.String
		parties.CourierID = &s
	}
	return parties, nil
}

// Verify the order contract at compile time
var _ store.OrderStore = (*Orders)(nil)
