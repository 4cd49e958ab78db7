package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comandago/comanda/pkg/store"
)

// GPS implements store.GPSStore over the shared handle.
type GPS struct {
	base *DB
}

// GPS returns the position-report store view.
func (s *DB) GPS() *GPS { return &GPS{base: s} }

// Insert stores a courier position report.
func (g *GPS) Insert(ctx context.Context, ping store.GPSPing) error {
	return g.base.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO gps_pings (order_id, courier_id, lat, lng, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			ping.OrderID, ping.CourierID, ping.Lat, ping.Lng, ping.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert gps ping: %w", err)
		}
		return nil
	})
}

// Latest returns the most recent ping for an order, or store.ErrNotFound.
func (g *GPS) Latest(ctx context.Context, orderID int64) (store.GPSPing, error) {
	row := g.base.db.QueryRowContext(ctx, `
		SELECT id, order_id, courier_id, lat, lng, created_at
		FROM gps_pings WHERE order_id = ?
		ORDER BY id DESC LIMIT 1`, orderID)

	var ping store.GPSPing
	err := row.Scan(&ping.ID, &ping.OrderID, &ping.CourierID, &ping.Lat, &ping.Lng, &ping.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.GPSPing{}, store.ErrNotFound
	}
	return ping, err
}

// Verify the GPS contract at compile time
var _ store.GPSStore = (*GPS)(nil)
