package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/comandago/comanda/internal/chat"
	"github.com/comandago/comanda/pkg/events"
)

// Buffered frames per SSE subscriber. A client that stalls longer than this
// loses events rather than blocking the dispatcher.
const sseBuffer = 64

// sseKeepAlive is how often a comment line is written to keep intermediaries
// from closing an idle stream.
const sseKeepAlive = 20 * time.Second

// canStream reports whether the subscriber may see evt. Chat frames are
// scoped to the orders the user can access; every other event type flows
// through unfiltered.
func (s *Server) canStream(ctx context.Context, claims *Claims, evt events.Event) bool {
	switch evt.Type {
	case chat.EventNewMessage, chat.EventStatusUpdated, chat.EventTyping:
	default:
		return true
	}
	if isStaff(claims) {
		return true
	}
	orderID, err := evt.Int64("pedido_id")
	if err != nil {
		return false
	}
	allowed, err := s.access.CanAccessOrder(ctx, claims.UserID, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", orderID).Msg("stream access check failed")
		return false
	}
	return allowed
}

// handleEventStream streams dispatched events to the client as server-sent
// events. It subscribes to the dispatcher's wildcard bucket for the lifetime
// of the request; chat frames for orders the caller cannot access are
// withheld.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	claims := ClaimsFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	frames := make(chan events.Event, sseBuffer)
	subID := "sse-" + uuid.NewString()
	s.dispatcher.Register(events.Wildcard, subID, func(evt events.Event) {
		select {
		case frames <- evt:
		default:
			// Slow consumer; drop rather than stall the dispatcher.
		}
	})
	defer s.dispatcher.Unregister(events.Wildcard, subID)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		case evt := <-frames:
			if !s.canStream(r.Context(), claims, evt) {
				continue
			}
			payload, err := evt.MarshalWire()
			if err != nil {
				s.logger.Warn().Err(err).Str("type", evt.Type).Msg("encode sse frame")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
