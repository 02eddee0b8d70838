package exam

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/logger"
	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

// Intent is a navigation request parked by the guard, waiting for an
// explicit confirm or cancel.
type Intent struct {
	ID          uuid.UUID `json:"id"`
	Target      string    `json:"target"`
	RequestedAt time.Time `json:"requested_at"`
}

// ExitGuard intercepts leave requests while an attempt is running. A blocked
// request is parked as an Intent; Confirm releases it (optionally running an
// exit callback first, e.g. force-finalizing the attempt), Cancel discards
// it and leaves the guard armed.
type ExitGuard struct {
	clock  Clock
	logger logger.Interface

	// onExit runs on confirmed exit, before the navigation resolves.
	onExit func(ctx context.Context) error

	mu      sync.Mutex
	armed   bool
	allowed bool
	pending *Intent
}

func NewExitGuard(clock Clock, l logger.Interface, onExit func(ctx context.Context) error) *ExitGuard {
	return &ExitGuard{
		clock:  clock,
		logger: l,
		onExit: onExit,
	}
}

// Arm -.
func (g *ExitGuard) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.armed = true
	g.allowed = false
}

// Disarm drops any parked intent; subsequent requests pass through.
func (g *ExitGuard) Disarm() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.armed = false
	g.pending = nil
}

// Armed -.
func (g *ExitGuard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.armed
}

// Request asks to navigate away. While the guard is armed and exit has not
// been allowed, the navigation is withheld and an Intent comes back for the
// caller to confirm; a newer request replaces an unconfirmed older one.
// When blocked is false the caller may navigate immediately.
func (g *ExitGuard) Request(target string) (intent *Intent, blocked bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.armed || g.allowed {
		return nil, false
	}

	g.pending = &Intent{
		ID:          uuid.New(),
		Target:      target,
		RequestedAt: g.clock.Now(),
	}

	return g.pending, true
}

// Confirm allows the parked navigation through. The exit callback runs
// first; its failure is logged but does not hold the navigation hostage —
// the user has already decided to leave.
func (g *ExitGuard) Confirm(ctx context.Context, id uuid.UUID) (string, error) {
	g.mu.Lock()
	if g.pending == nil || g.pending.ID != id {
		g.mu.Unlock()

		return "", errs.ErrRecordNotFound
	}

	target := g.pending.Target
	g.pending = nil
	g.allowed = true
	onExit := g.onExit
	g.mu.Unlock()

	if onExit != nil {
		if err := onExit(ctx); err != nil {
			g.logger.Error(err, "ExitGuard - Confirm - onExit")
		}
	}

	return target, nil
}

// Cancel discards the pending intent. The guard stays armed.
func (g *ExitGuard) Cancel(id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil || g.pending.ID != id {
		return errs.ErrRecordNotFound
	}

	g.pending = nil

	return nil
}
