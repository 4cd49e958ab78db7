package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/comandago/comanda/pkg/store"
)

// Vouchers implements store.VoucherStore over the shared handle.
type Vouchers struct {
	base *DB
}

// Vouchers returns the voucher store view.
func (s *DB) Vouchers() *Vouchers { return &Vouchers{base: s} }

// Create inserts a new pending voucher and returns its id.
func (v *Vouchers) Create(ctx context.Context, voucher store.Voucher) (int64, error) {
	var id int64
	err := v.base.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO vouchers (order_id, submitted_by, amount, payment_method, image_ref, status, branch_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			voucher.OrderID, voucher.SubmittedBy, voucher.Amount, voucher.PaymentMethod,
			voucher.ImageRef, store.VoucherPending, voucher.BranchID, voucher.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert voucher: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

// Get returns the voucher by id, or store.ErrNotFound.
func (v *Vouchers) Get(ctx context.Context, id int64) (store.Voucher, error) {
	row := v.base.db.QueryRowContext(ctx, `
		SELECT id, order_id, submitted_by, amount, payment_method, image_ref, status,
		       branch_id, created_at, decided_at, decided_by, reject_reason
		FROM vouchers WHERE id = ?`, id)

	voucher, err := scanVoucher(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Voucher{}, store.ErrNotFound
	}
	return voucher, err
}

// List returns one page of vouchers with the given status, newest first.
func (v *Vouchers) List(ctx context.Context, status string, offset, limit int, branchID *int64) (store.VoucherPage, error) {
	countQuery := `SELECT COUNT(*) FROM vouchers WHERE status = ?`
	pageQuery := `
		SELECT id, order_id, submitted_by, amount, payment_method, image_ref, status,
		       branch_id, created_at, decided_at, decided_by, reject_reason
		FROM vouchers WHERE status = ?`
	countArgs := []any{status}
	pageArgs := []any{status}

	if branchID != nil {
		countQuery += ` AND branch_id = ?`
		pageQuery += ` AND branch_id = ?`
		countArgs = append(countArgs, *branchID)
		pageArgs = append(pageArgs, *branchID)
	}
	pageQuery += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	pageArgs = append(pageArgs, limit, offset)

	var total int
	if err := v.base.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return store.VoucherPage{}, fmt.Errorf("count vouchers: %w", err)
	}

	rows, err := v.base.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return store.VoucherPage{}, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	items := make([]store.Voucher, 0, limit)
	for rows.Next() {
		voucher, err := scanVoucher(rows)
		if err != nil {
			return store.VoucherPage{}, err
		}
		items = append(items, voucher)
	}
	if err := rows.Err(); err != nil {
		return store.VoucherPage{}, fmt.Errorf("iterate vouchers: %w", err)
	}

	return store.VoucherPage{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	}, nil
}

// Decide applies a status transition with its decision metadata.
func (v *Vouchers) Decide(ctx context.Context, id int64, status, actorID string, reason *string) error {
	return v.base.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE vouchers
			SET status = ?, decided_at = CURRENT_TIMESTAMP, decided_by = ?, reject_reason = ?
			WHERE id = ?`,
			status, actorID, reason, id)
		if err != nil {
			return fmt.Errorf("update voucher %d: %w", id, err)
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

// Stats returns per-status voucher counts.
func (v *Vouchers) Stats(ctx context.Context) (store.VoucherStats, error) {
	rows, err := v.base.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM vouchers GROUP BY status`)
	if err != nil {
		return store.VoucherStats{}, fmt.Errorf("voucher stats: %w", err)
	}
	defer rows.Close()

	var stats store.VoucherStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return store.VoucherStats{}, err
		}
		switch status {
		case store.VoucherPending:
			stats.Pending = count
		case store.VoucherApproved:
			stats.Approved = count
		case store.VoucherRejected:
			stats.Rejected = count
		}
	}
	return stats, rows.Err()
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row scanner) (store.Voucher, error) {
	var v store.Voucher
	var branchID sql.NullInt64
	var decidedAt sql.NullTime
	var decidedBy, rejectReason sql.NullString

	err := row.Scan(&v.ID, &v.OrderID, &v.SubmittedBy, &v.Amount, &v.PaymentMethod,
		&v.ImageRef, &v.Status, &branchID, &v.CreatedAt, &decidedAt, &decidedBy, &rejectReason)
	if err != nil {
		return store.Voucher{}, err
	}

	if branchID.Valid {
		b := branchID.Int64
		v.BranchID = &b
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		v.DecidedAt = &t
	}
	if decidedBy.Valid {
		s := decidedBy.String
		v.DecidedBy = &s
	}
	if rejectReason.Valid {
		s := rejectReason.String
		v.RejectReason = &s
	}
	return v, nil
}

// Verify the voucher contract at compile time
var _ store.VoucherStore = (*Vouchers)(nil)
