package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/comandago/comanda/internal/chat"
	"github.com/comandago/comanda/internal/notify"
	"github.com/comandago/comanda/internal/validation"
	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// Outbox queues events for delivery to the backend broker.
type Outbox interface {
	Enqueue(evt events.Event)
}

// Deps collects everything the HTTP surface needs. All fields are required
// unless noted.
type Deps struct {
	Auth       *JWTAuth
	Chat       *chat.Manager
	Validation *validation.Service
	Notify     *notify.Manager
	Access     chat.AccessChecker
	Vouchers   store.VoucherStore
	Messages   store.MessageStore
	GPS        store.GPSStore
	Dispatcher events.Dispatcher
	EventLog   events.Log
	Outbox     Outbox
	Logger     zerolog.Logger

	// Health optionally reports per-component health for /healthz.
	Health func() map[string]any

	// Metrics is the registry gathered on /metrics. Defaults to the
	// process-wide registry.
	Metrics prometheus.Gatherer
}

// Server is the HTTP API for the realtime service: auth, chat, voucher
// validation, notifications and the outbound SSE event stream.
type Server struct {
	auth       *JWTAuth
	chat       *chat.Manager
	validation *validation.Service
	notify     *notify.Manager
	access     chat.AccessChecker
	vouchers   store.VoucherStore
	messages   store.MessageStore
	gps        store.GPSStore
	dispatcher events.Dispatcher
	eventLog   events.Log
	outbox     Outbox
	logger     zerolog.Logger
	health     func() map[string]any
	metrics    prometheus.Gatherer

	router *chi.Mux
	server *http.Server
}

// NewServer builds the API server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		auth:       deps.Auth,
		chat:       deps.Chat,
		validation: deps.Validation,
		notify:     deps.Notify,
		access:     deps.Access,
		vouchers:   deps.Vouchers,
		messages:   deps.Messages,
		gps:        deps.GPS,
		dispatcher: deps.Dispatcher,
		eventLog:   deps.EventLog,
		outbox:     deps.Outbox,
		health:     deps.Health,
		metrics:    deps.Metrics,
		logger:     deps.Logger.With().Str("component", "httpapi").Logger(),
		router:     chi.NewRouter(),
	}
	if s.metrics == nil {
		s.metrics = prometheus.DefaultGatherer
	}
	s.routes()

	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
		// No WriteTimeout: the SSE stream holds its response open.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestLogger(s.logger))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	s.router.Post("/api/v1/auth/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(s.AuthRequired)

		r.Get("/api/v1/events", s.handleEventStream)
		r.Get("/api/v1/events/recent", s.handleRecentEvents)

		r.Route("/api/v1/orders/{orderID}", func(r chi.Router) {
			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/typing", s.handleGetTyping)
			r.Post("/typing", s.handlePostTyping)
			r.Get("/gps", s.handleLatestGPS)
		})
		r.Post("/api/v1/messages/{messageID}/read", s.handleMarkMessageRead)

		r.Get("/api/v1/notifications", s.handleUnreadNotifications)
		r.Post("/api/v1/notifications/{notificationID}/read", s.handleMarkNotificationRead)

		r.Group(func(r chi.Router) {
			r.Use(s.StaffRequired)
			r.Get("/api/v1/vouchers", s.handleListVouchers)
			r.Get("/api/v1/vouchers/stats", s.handleVoucherStats)
			r.Post("/api/v1/vouchers/{voucherID}/approve", s.handleApproveVoucher)
			r.Post("/api/v1/vouchers/{voucherID}/reject", s.handleRejectVoucher)
		})
	})
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins serving. It blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
