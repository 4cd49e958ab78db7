package validation

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// DefaultPageSize is the voucher page size used by load commands.
const DefaultPageSize = 20

// commandBuffer bounds the pending command queue. Enqueueing past it drops
// the command rather than blocking the caller.
const commandBuffer = 64

// refreshEventType is the broker event that triggers a live reload of the
// current filter.
const refreshEventType = "comprobante_actualizado"

// State is a snapshot of the voucher workflow visible to subscribers.
type State interface {
	stateName() string
}

// Initial is the state before any command has run.
type Initial struct{}

// Loading reports an in-flight page load for a status filter.
type Loading struct {
	Status string
}

// Loaded carries the cached page(s) for the current filter.
type Loaded struct {
	Items   []store.Voucher
	Total   int
	HasMore bool
	Status  string
}

// Validating reports an in-flight approve/reject for one voucher.
type Validating struct {
	VoucherID int64
}

// Validated reports a completed decision. NewStatus carries the destination
// status explicitly so the UI can route the voucher without re-deriving it.
type Validated struct {
	Message   string
	Items     []store.Voucher
	Total     int
	HasMore   bool
	NewStatus string
}

// StatsLoaded carries the per-status voucher counts.
type StatsLoaded struct {
	Stats store.VoucherStats
}

// Failed carries a textual description of a rule violation or an unexpected
// worker failure. Nothing ever panics across the workflow boundary.
type Failed struct {
	Message string
}

func (Initial) stateName() string     { return "initial" }
func (Loading) stateName() string     { return "loading" }
func (Loaded) stateName() string      { return "loaded" }
func (Validating) stateName() string  { return "validating" }
func (Validated) stateName() string   { return "validated" }
func (StatsLoaded) stateName() string { return "stats_loaded" }
func (Failed) stateName() string      { return "failed" }

// Command is a request accepted by the workflow.
type Command interface {
	commandName() string
}

// LoadByStatus loads one page of vouchers with the given status.
type LoadByStatus struct {
	Status   string
	Offset   int
	BranchID *int64
}

// LoadMore appends the next page into the current filter's cache.
type LoadMore struct{}

// Approve requests an approval decision.
type Approve struct {
	VoucherID int64
	ActorID   string
}

// Reject requests a rejection decision with its reason.
type Reject struct {
	VoucherID int64
	ActorID   string
	Reason    string
}

// ChangeFilter switches the current status filter, resetting the offset.
type ChangeFilter struct {
	Status string
}

// LoadStats requests the per-status counts.
type LoadStats struct{}

// reload re-runs the current filter; enqueued by broker refresh events.
type reload struct{}

func (LoadByStatus) commandName() string { return "load_by_status" }
func (LoadMore) commandName() string     { return "load_more" }
func (Approve) commandName() string      { return "approve" }
func (Reject) commandName() string       { return "reject" }
func (ChangeFilter) commandName() string { return "change_filter" }
func (LoadStats) commandName() string    { return "load_stats" }
func (reload) commandName() string       { return "reload" }

// Listener receives every state transition. Listeners are invoked
// synchronously from the workflow goroutine, so they must not block and must
// be safe to call from any goroutine.
type Listener func(State)

// BLoC is the voucher validation state machine. Commands go in through a
// non-blocking Dispatch; states come out through subscribed listeners.
//
// A single goroutine drains the command queue strictly in arrival order and
// owns all workflow state (current filter, offset, per-status caches), so
// commands never interleave and a LoadMore always lands in the cache of the
// filter that is current when it is drained.
type BLoC struct {
	service    *Service
	vouchers   store.VoucherStore
	dispatcher events.Dispatcher
	logger     zerolog.Logger
	pageSize   int

	commands chan Command

	// Actor-owned state. Touched only from the run goroutine.
	filter   string
	offset   int
	branchID *int64
	caches   map[string][]store.Voucher
	total    int
	hasMore  bool

	mu        sync.Mutex
	listeners map[string]Listener
	last      State
	started   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewBLoC creates the workflow. The dispatcher may be nil in tests that do
// not exercise live refresh.
func NewBLoC(service *Service, vouchers store.VoucherStore, dispatcher events.Dispatcher, logger zerolog.Logger) *BLoC {
	return &BLoC{
		service:    service,
		vouchers:   vouchers,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "validation-bloc").Logger(),
		pageSize:   DefaultPageSize,
		commands:   make(chan Command, commandBuffer),
		filter:     store.VoucherPending,
		caches:     make(map[string][]store.Voucher),
		listeners:  make(map[string]Listener),
		last:       Initial{},
	}
}

// Start launches the command-draining goroutine and registers the live
// refresh trigger. Idempotent.
func (b *BLoC) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	b.started = true

	if b.dispatcher != nil {
		b.dispatcher.Register(refreshEventType, "validation-bloc", func(events.Event) {
			b.Dispatch(reload{})
		})
	}

	go b.run(runCtx)
	return nil
}

// Stop terminates the draining goroutine. Commands already accepted are
// abandoned; there is no cancellation of the one in flight, it runs to
// completion. Idempotent.
func (b *BLoC) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if b.dispatcher != nil {
		b.dispatcher.Unregister(refreshEventType, "validation-bloc")
	}
	cancel()
	<-done
}

// Dispatch enqueues a command without blocking. When the queue is full the
// command is dropped and logged; the caller is never held up.
func (b *BLoC) Dispatch(cmd Command) {
	select {
	case b.commands <- cmd:
	default:
		b.logger.Warn().Str("command", cmd.commandName()).Msg("command queue full; command dropped")
	}
}

// Subscribe registers a state listener under a caller-chosen id.
func (b *BLoC) Subscribe(id string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[id] = fn
}

// Unsubscribe removes a state listener. No-op if absent.
func (b *BLoC) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, id)
}

// Current returns the most recently emitted state.
func (b *BLoC) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *BLoC) run(ctx context.Context) {
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-b.commands:
			b.handle(ctx, cmd)
		}
	}
}

// handle executes one command. A panic inside a command is converted to a
// Failed state; it never crashes the draining goroutine.
func (b *BLoC) handle(ctx context.Context, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("command", cmd.commandName()).
				Interface("panic", r).
				Msg("command panicked")
			b.emit(Failed{Message: fmt.Sprintf("error inesperado: %v", r)})
		}
	}()

	switch c := cmd.(type) {
	case LoadByStatus:
		b.filter = c.Status
		b.offset = c.Offset
		b.branchID = c.BranchID
		b.loadPage(ctx, false)
	case ChangeFilter:
		b.filter = c.Status
		b.offset = 0
		b.loadPage(ctx, false)
	case LoadMore:
		if !b.hasMore {
			return
		}
		b.offset += b.pageSize
		b.loadPage(ctx, true)
	case reload:
		b.loadPage(ctx, false)
	case Approve:
		b.decide(ctx, c.VoucherID, store.VoucherApproved, func() Result {
			return b.service.Approve(ctx, c.VoucherID, c.ActorID)
		})
	case Reject:
		b.decide(ctx, c.VoucherID, store.VoucherRejected, func() Result {
			return b.service.Reject(ctx, c.VoucherID, c.ActorID, c.Reason)
		})
	case LoadStats:
		stats, err := b.vouchers.Stats(ctx)
		if err != nil {
			b.emit(Failed{Message: "no se pudieron cargar las estadísticas"})
			return
		}
		b.emit(StatsLoaded{Stats: stats})
	default:
		b.logger.Warn().Str("command", cmd.commandName()).Msg("unknown command ignored")
	}
}

// loadPage queries the current filter and updates its cache. With append
// set, the page extends the cache (LoadMore); otherwise it replaces it.
func (b *BLoC) loadPage(ctx context.Context, appendPage bool) {
	b.emit(Loading{Status: b.filter})

	page, err := b.vouchers.List(ctx, b.filter, b.offset, b.pageSize, b.branchID)
	if err != nil {
		b.logger.Error().Err(err).Str("status", b.filter).Msg("voucher page load failed")
		b.emit(Failed{Message: "no se pudieron cargar los comprobantes"})
		return
	}

	if appendPage {
		b.caches[b.filter] = append(b.caches[b.filter], page.Items...)
	} else {
		b.caches[b.filter] = page.Items
	}
	b.total = page.Total
	b.hasMore = page.HasMore

	b.emit(Loaded{
		Items:   b.snapshotCache(b.filter),
		Total:   b.total,
		HasMore: b.hasMore,
		Status:  b.filter,
	})
}

// decide runs an approve/reject, reloads the current filter on success and
// emits Validated carrying the destination status.
func (b *BLoC) decide(ctx context.Context, voucherID int64, newStatus string, apply func() Result) {
	b.emit(Validating{VoucherID: voucherID})

	result := apply()
	if !result.Success {
		b.emit(Failed{Message: result.Message})
		return
	}

	page, err := b.vouchers.List(ctx, b.filter, 0, b.offset+b.pageSize, b.branchID)
	if err != nil {
		b.logger.Error().Err(err).Str("status", b.filter).Msg("post-decision reload failed")
		b.emit(Failed{Message: "no se pudieron recargar los comprobantes"})
		return
	}
	b.offset = 0
	b.caches[b.filter] = page.Items
	b.total = page.Total
	b.hasMore = page.HasMore

	b.emit(Validated{
		Message:   result.Message,
		Items:     b.snapshotCache(b.filter),
		Total:     b.total,
		HasMore:   b.hasMore,
		NewStatus: newStatus,
	})
}

func (b *BLoC) snapshotCache(status string) []store.Voucher {
	cached := b.caches[status]
	out := make([]store.Voucher, len(cached))
	copy(out, cached)
	return out
}

// emit records the state and invokes every listener synchronously from the
// draining goroutine.
func (b *BLoC) emit(s State) {
	b.mu.Lock()
	b.last = s
	listeners := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}
