package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/comandago/comanda/internal/perm"
	"github.com/comandago/comanda/internal/validation"
	"github.com/comandago/comanda/pkg/events"
	"github.com/comandago/comanda/pkg/store"
)

// EventVoucherUpdated is broadcast after a voucher decision so open voucher
// screens refresh and the backend broker hears about the change.
const EventVoucherUpdated = "comprobante_actualizado"

func isStaff(claims *Claims) bool {
	return claims.HasRole(perm.RoleAdmin) ||
		claims.HasRole(perm.RoleSuperadmin) ||
		claims.HasRole(perm.RoleAttention)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if s.health != nil {
		body["components"] = s.health()
	}
	s.writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(req.UserID, req.Roles)
	if err != nil {
		s.logger.Error().Err(err).Msg("generate token")
		s.writeError(w, http.StatusInternalServerError, "could not create token")
		return
	}

	s.writeJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		UserID:    req.UserID,
		ExpiresAt: expiresAt,
	})
}

func (s *Server) orderIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid order id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderIDParam(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		s.writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	claims := ClaimsFrom(r.Context())
	res := s.chat.SendMessage(r.Context(), orderID, claims.UserID, req.Body, req.Type)

	status := http.StatusOK
	if !res.Success {
		status = http.StatusForbidden
	}
	s.writeJSON(w, status, SendMessageResponse{
		Success:   res.Success,
		Message:   res.Message,
		MessageID: res.ID,
		Hash:      res.Hash,
		Status:    res.Status,
	})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderIDParam(w, r)
	if !ok {
		return
	}
	claims := ClaimsFrom(r.Context())

	allowed, err := s.access.CanAccessOrder(r.Context(), claims.UserID, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", orderID).Msg("access check failed")
	}
	if !allowed {
		s.writeError(w, http.StatusForbidden, "acceso denegado")
		return
	}

	msgs, err := s.messages.ListByOrder(r.Context(), orderID)
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Msg("list messages")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	if err := s.chat.MarkRead(r.Context(), chi.URLParam(r, "messageID"), claims.UserID); err != nil {
		s.logger.Error().Err(err).Msg("mark message read")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostTyping(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderIDParam(w, r)
	if !ok {
		return
	}
	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	claims := ClaimsFrom(r.Context())
	s.chat.NotifyTyping(orderID, claims.UserID, req.IsTyping)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTyping(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderIDParam(w, r)
	if !ok {
		return
	}
	users := s.chat.TypingUsers(orderID)
	if users == nil {
		users = []string{}
	}
	s.writeJSON(w, http.StatusOK, TypingResponse{Users: users})
}

func (s *Server) handleLatestGPS(w http.ResponseWriter, r *http.Request) {
	orderID, ok := s.orderIDParam(w, r)
	if !ok {
		return
	}
	claims := ClaimsFrom(r.Context())
	allowed, err := s.access.CanAccessOrder(r.Context(), claims.UserID, orderID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("order_id", orderID).Msg("access check failed")
	}
	if !allowed {
		s.writeError(w, http.StatusForbidden, "acceso denegado")
		return
	}

	ping, err := s.gps.Latest(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "sin posición registrada")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("order_id", orderID).Msg("latest gps")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, ping)
}

func (s *Server) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := q.Get("status")
	if status == "" {
		status = store.VoucherPending
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	var branchID *int64
	if raw := q.Get("branch_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid branch_id")
			return
		}
		branchID = &id
	}

	page, err := s.vouchers.List(r.Context(), status, offset, limit, branchID)
	if err != nil {
		s.logger.Error().Err(err).Msg("list vouchers")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := page.Items
	if items == nil {
		items = []store.Voucher{}
	}
	s.writeJSON(w, http.StatusOK, VoucherPageResponse{
		Items:   items,
		Total:   page.Total,
		HasMore: page.HasMore,
	})
}

func (s *Server) handleVoucherStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.vouchers.Stats(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("voucher stats")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleApproveVoucher(w http.ResponseWriter, r *http.Request) {
	voucherID, err := strconv.ParseInt(chi.URLParam(r, "voucherID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}
	claims := ClaimsFrom(r.Context())

	res := s.validation.Approve(r.Context(), voucherID, claims.UserID)
	s.finishDecision(w, voucherID, store.VoucherApproved, res)
}

func (s *Server) handleRejectVoucher(w http.ResponseWriter, r *http.Request) {
	voucherID, err := strconv.ParseInt(chi.URLParam(r, "voucherID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid voucher id")
		return
	}
	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	claims := ClaimsFrom(r.Context())

	res := s.validation.Reject(r.Context(), voucherID, claims.UserID, req.Reason)
	s.finishDecision(w, voucherID, store.VoucherRejected, res)
}

// finishDecision writes the decision outcome and, on success, broadcasts the
// refresh event locally and toward the broker.
func (s *Server) finishDecision(w http.ResponseWriter, voucherID int64, newStatus string, res validation.Result) {
	if !res.Success {
		s.writeJSON(w, http.StatusConflict, DecisionResponse{Success: false, Message: res.Message})
		return
	}

	evt := events.New(EventVoucherUpdated, map[string]any{
		"comprobante_id": strconv.FormatInt(voucherID, 10),
		"estado":         newStatus,
	})
	if err := s.dispatcher.Dispatch(evt); err != nil {
		s.logger.Warn().Err(err).Msg("dispatch voucher update")
	}
	s.outbox.Enqueue(evt)

	s.writeJSON(w, http.StatusOK, DecisionResponse{Success: true, Message: res.Message})
}

func (s *Server) handleUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFrom(r.Context())
	items, err := s.notify.Unread(r.Context(), claims.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("unread notifications")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []store.Notification{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := s.notify.MarkRead(r.Context(), chi.URLParam(r, "notificationID"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "notificación no encontrada")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("mark notification read")
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	recent := s.eventLog.Recent(limit)
	if recent == nil {
		recent = []events.Event{}
	}
	s.writeJSON(w, http.StatusOK, recent)
}
