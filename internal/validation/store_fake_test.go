package validation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comandago/comanda/pkg/store"
)

// fakeVoucherStore is an in-memory VoucherStore for workflow tests.
type fakeVoucherStore struct {
	mu       sync.Mutex
	vouchers map[int64]store.Voucher
	now      func() time.Time
}

func newFakeVoucherStore(now func() time.Time) *fakeVoucherStore {
	if now == nil {
		now = time.Now
	}
	return &fakeVoucherStore{
		vouchers: make(map[int64]store.Voucher),
		now:      now,
	}
}

func (f *fakeVoucherStore) put(v store.Voucher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vouchers[v.ID] = v
}

func (f *fakeVoucherStore) Get(_ context.Context, id int64) (store.Voucher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vouchers[id]
	if !ok {
		return store.Voucher{}, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeVoucherStore) List(_ context.Context, status string, offset, limit int, _ *int64) (store.VoucherPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matching []store.Voucher
	for _, v := range f.vouchers {
		if v.Status == status {
			matching = append(matching, v)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].ID > matching[j].ID })

	total := len(matching)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return store.VoucherPage{
		Items:   append([]store.Voucher(nil), matching[offset:end]...),
		Total:   total,
		HasMore: end < total,
	}, nil
}

func (f *fakeVoucherStore) Decide(_ context.Context, id int64, status, actorID string, reason *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.vouchers[id]
	if !ok {
		return store.ErrNotFound
	}
	decidedAt := f.now()
	v.Status = status
	v.DecidedAt = &decidedAt
	v.DecidedBy = &actorID
	v.RejectReason = reason
	f.vouchers[id] = v
	return nil
}

func (f *fakeVoucherStore) Stats(_ context.Context) (store.VoucherStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stats store.VoucherStats
	for _, v := range f.vouchers {
		switch v.Status {
		case store.VoucherPending:
			stats.Pending++
		case store.VoucherApproved:
			stats.Approved++
		case store.VoucherRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
