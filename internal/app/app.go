// Package app assembles the realtime service: storage, event plumbing,
// broker connections, domain managers and the HTTP surface. Everything is
// constructed here and injected; no package keeps global state.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/comandago/comanda/internal/broker"
	"github.com/comandago/comanda/internal/chat"
	"github.com/comandago/comanda/internal/config"
	ievents "github.com/comandago/comanda/internal/events"
	"github.com/comandago/comanda/internal/httpapi"
	"github.com/comandago/comanda/internal/notify"
	"github.com/comandago/comanda/internal/outbox"
	"github.com/comandago/comanda/internal/perm"
	sqlstore "github.com/comandago/comanda/internal/store"
	"github.com/comandago/comanda/internal/validation"
	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("app already started")

// EventGPS is the ingress frame type carrying a courier position.
const EventGPS = "gps"

// gpsHandlerID identifies the app's GPS subscription on the dispatcher.
const gpsHandlerID = "app-gps"

// App owns the full component graph and its lifecycle.
type App struct {
	cfg    config.Config
	logger zerolog.Logger

	db         *sqlstore.DB
	dispatcher *ievents.InMemoryDispatcher
	eventLog   *ievents.RingLog
	notifier   *broker.Client
	outbox     *outbox.Queue
	ingress    *broker.IngressClient
	liveConfig *config.Live
	validation *validation.Service
	bloc       *validation.BLoC
	chatMgr    *chat.Manager
	notifyMgr  *notify.Manager
	api        *httpapi.Server

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New builds the component graph from configuration. Nothing runs until
// Start is called.
func New(cfg config.Config, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sqlstore.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	reg := prometheus.NewRegistry()
	dispatcher := ievents.NewInMemoryDispatcher(logger, ievents.NewMetrics(reg))

	capacity := cfg.EventLogCapacity
	if capacity <= 0 {
		capacity = ievents.DefaultLogCapacity
	}
	eventLog := ievents.NewRingLog(capacity)

	brokerMetrics := broker.NewMetrics(reg)
	notifier := broker.NewClient(cfg.BrokerNotifyURL, logger, brokerMetrics)
	out := outbox.NewQueue(notifier, cfg.OutboxCapacity, logger)
	ingress := broker.NewIngressClient(broker.IngressConfig{URL: cfg.BrokerStreamURL},
		dispatcher, eventLog, logger, brokerMetrics)

	liveConfig := config.NewLive(db.Config())
	windowPolicy := validation.NewWindowPolicy(liveConfig, time.Now)
	svc := validation.NewService(db.Vouchers(), windowPolicy, logger)
	bloc := validation.NewBLoC(svc, db.Vouchers(), dispatcher, logger)

	policy := perm.NewPolicy(perm.StaticRoles(cfg.Roles), db.Orders())
	chatMgr := chat.NewManager(db.Messages(), policy, dispatcher, out, logger, time.Now)
	notifyMgr := notify.NewManager(db.Notifications(), out, logger, time.Now)

	a := &App{
		cfg:        cfg,
		logger:     logger.With().Str("component", "app").Logger(),
		db:         db,
		dispatcher: dispatcher,
		eventLog:   eventLog,
		notifier:   notifier,
		outbox:     out,
		ingress:    ingress,
		liveConfig: liveConfig,
		validation: svc,
		bloc:       bloc,
		chatMgr:    chatMgr,
		notifyMgr:  notifyMgr,
	}

	a.api = httpapi.NewServer(cfg.HTTPAddr, httpapi.Deps{
		Auth:       httpapi.NewJWTAuth(cfg.JWTSecret),
		Chat:       chatMgr,
		Validation: svc,
		Notify:     notifyMgr,
		Access:     policy,
		Vouchers:   db.Vouchers(),
		Messages:   db.Messages(),
		GPS:        db.GPS(),
		Dispatcher: dispatcher,
		EventLog:   eventLog,
		Outbox:     out,
		Logger:     logger,
		Health:     a.Health,
		Metrics:    reg,
	})

	return a, nil
}

// Start launches every component and begins serving HTTP.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.started = true

	if err := a.outbox.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start outbox: %w", err)
	}
	if err := a.bloc.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start validation workflow: %w", err)
	}
	if err := a.ingress.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start ingress: %w", err)
	}

	a.dispatcher.Register(EventGPS, gpsHandlerID, a.handleGPSPing)

	go func() {
		if err := a.api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("http server failed")
		}
	}()

	a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("service started")
	return nil
}

// Stop shuts everything down in reverse start order. Idempotent.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = false
	cancel := a.cancel
	a.mu.Unlock()

	a.dispatcher.Unregister(EventGPS, gpsHandlerID)

	var firstErr error
	if err := a.api.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop http server: %w", err)
	}
	a.ingress.Stop()
	a.bloc.Stop()
	a.outbox.Stop()
	cancel()

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close database: %w", err)
	}

	a.logger.Info().Msg("service stopped")
	return firstErr
}

// Validation exposes the voucher workflow, for the CLI surface.
func (a *App) Validation() *validation.BLoC { return a.bloc }

// Health reports per-component health.
func (a *App) Health() map[string]any {
	return map[string]any{
		"ingress":        string(a.ingress.State()),
		"outbox_pending": a.outbox.Pending(),
		"event_log":      len(a.eventLog.Recent(1)) > 0,
	}
}

// handleGPSPing persists courier position frames arriving from the broker
// and relays them to live subscribers of the gps category. Malformed frames
// are dropped.
func (a *App) handleGPSPing(evt events.Event) {
	orderID, err := evt.Int64("pedido_id")
	if err != nil {
		a.logger.Debug().Err(err).Msg("gps frame without order id")
		return
	}
	lat, latErr := evt.Float64("lat")
	lng, lngErr := evt.Float64("lng")
	if latErr != nil || lngErr != nil {
		a.logger.Debug().Int64("order_id", orderID).Msg("gps frame without coordinates")
		return
	}

	ping := store.GPSPing{
		OrderID:   orderID,
		CourierID: evt.String("repartidor_id"),
		Lat:       lat,
		Lng:       lng,
		CreatedAt: evt.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.db.GPS().Insert(ctx, ping); err != nil {
		a.logger.Warn().Err(err).Int64("order_id", orderID).Msg("persist gps ping")
		return
	}

	a.notifyMgr.BroadcastCategory(notify.CategoryGPS, store.Notification{
		UserID:    ping.CourierID,
		Category:  notify.CategoryGPS,
		Extra:     evt.Data,
		CreatedAt: evt.Timestamp,
	})
}
