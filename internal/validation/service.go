package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/comandago/comanda/pkg/store"
)

// MinRejectReasonLen is the minimum trimmed length of a rejection reason.
const MinRejectReasonLen = 10

// Result is the structured outcome of a voucher decision. Rule violations
// are carried here, never raised as errors across the workflow boundary.
type Result struct {
	Success bool
	Message string
}

func failure(message string) Result {
	return Result{Success: false, Message: message}
}

// Service is the approve/reject use case: it fetches the voucher, enforces
// the business rules, performs the persisted transition and reports the
// outcome.
type Service struct {
	vouchers store.VoucherStore
	policy   *WindowPolicy
	logger   zerolog.Logger
}

// NewService creates the voucher decision use case.
func NewService(vouchers store.VoucherStore, policy *WindowPolicy, logger zerolog.Logger) *Service {
	return &Service{
		vouchers: vouchers,
		policy:   policy,
		logger:   logger.With().Str("component", "validation-service").Logger(),
	}
}

// Approve transitions a voucher to APROBADO.
func (s *Service) Approve(ctx context.Context, voucherID int64, actorID string) Result {
	return s.decide(ctx, voucherID, actorID, store.VoucherApproved, nil)
}

// Reject transitions a voucher to RECHAZADO. The trimmed reason must be at
// least MinRejectReasonLen characters.
func (s *Service) Reject(ctx context.Context, voucherID int64, actorID, reason string) Result {
	trimmed := strings.TrimSpace(reason)
	if len([]rune(trimmed)) < MinRejectReasonLen {
		return failure(fmt.Sprintf("el motivo de rechazo debe tener al menos %d caracteres", MinRejectReasonLen))
	}
	return s.decide(ctx, voucherID, actorID, store.VoucherRejected, &trimmed)
}

func (s *Service) decide(ctx context.Context, voucherID int64, actorID, newStatus string, reason *string) Result {
	voucher, err := s.vouchers.Get(ctx, voucherID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failure("comprobante no encontrado")
		}
		return failure("no se pudo consultar el comprobante")
	}

	if voucher.Status == newStatus {
		return failure(fmt.Sprintf("el comprobante ya está %s", newStatus))
	}

	// A pending voucher may always be decided. A decided voucher may be
	// flipped only while its lock window is still open.
	if voucher.Status != store.VoucherPending && voucher.DecidedAt != nil {
		locked, _ := s.policy.Evaluate(ctx, *voucher.DecidedAt)
		if locked {
			return failure("la ventana de validación expiró; la decisión es definitiva")
		}
	}

	if err := s.vouchers.Decide(ctx, voucherID, newStatus, actorID, reason); err != nil {
		s.logger.Error().Err(err).Int64("voucher_id", voucherID).Msg("voucher transition failed")
		return failure("no se pudo actualizar el comprobante")
	}

	s.logger.Info().
		Int64("voucher_id", voucherID).
		Str("actor_id", actorID).
		Str("status", newStatus).
		Msg("voucher decided")

	verb := "aprobado"
	if newStatus == store.VoucherRejected {
		verb = "rechazado"
	}
	return Result{Success: true, Message: fmt.Sprintf("comprobante %d %s", voucherID, verb)}
}

// Remaining reports the still-open mutation window for a decided voucher.
// ok is false when the voucher is pending (no decision yet) or locked.
func (s *Service) Remaining(ctx context.Context, voucher store.Voucher) (time.Duration, bool) {
	if voucher.DecidedAt == nil {
		return 0, false
	}
	locked, remaining := s.policy.Evaluate(ctx, *voucher.DecidedAt)
	if locked {
		return 0, false
	}
	return remaining, true
}
