// Package validation implements the payment-voucher approval workflow: the
// decision lock-window policy, the approve/reject use case, and the
// command-driven background state machine the UI subscribes to.
package validation

import (
	"context"
	"strconv"
	"time"

	"github.com/comandago/comanda/pkg/store"
)

// WindowKey is the live-config key holding the window length in minutes.
const WindowKey = "ventana_validacion_minutos"

// DefaultWindowMinutes applies when the live config has no value.
const DefaultWindowMinutes = 5

// Window is the pure lock-window function. A decision may still be changed
// while the window since decidedAt is open; once it elapses the decision is
// locked and all further mutation is refused.
//
// It returns (false, remaining>0) while open and (true, 0) once locked.
func Window(decidedAt time.Time, window time.Duration, now time.Time) (locked bool, remaining time.Duration) {
	elapsed := now.Sub(decidedAt)
	if elapsed >= window {
		return true, 0
	}
	return false, window - elapsed
}

// WindowPolicy evaluates the lock window with its length read from the live
// configuration store, so operators can tune it without a restart.
type WindowPolicy struct {
	config store.ConfigStore
	now    func() time.Time
}

// NewWindowPolicy creates a policy over the live config store. A nil now
// function defaults to time.Now.
func NewWindowPolicy(config store.ConfigStore, now func() time.Time) *WindowPolicy {
	if now == nil {
		now = time.Now
	}
	return &WindowPolicy{config: config, now: now}
}

// Minutes returns the configured window length.
func (p *WindowPolicy) Minutes(ctx context.Context) int {
	raw, err := p.config.GetValue(ctx, WindowKey, strconv.Itoa(DefaultWindowMinutes))
	if err != nil {
		return DefaultWindowMinutes
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return DefaultWindowMinutes
	}
	return minutes
}

// Evaluate applies the configured window to a decision timestamp.
func (p *WindowPolicy) Evaluate(ctx context.Context, decidedAt time.Time) (locked bool, remaining time.Duration) {
	window := time.Duration(p.Minutes(ctx)) * time.Minute
	return Window(decidedAt, window, p.now())
}
