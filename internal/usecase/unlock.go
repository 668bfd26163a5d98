// File: internal/usecase/unlock.go
package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/metrics"
)

// UnlockGate converts "payment completed" into permission to perform the
// gated download. The automatic release on completion is edge-triggered and
// one-shot per deposit id: duplicate terminal reports, page reloads and
// replayed callbacks cannot re-fire it. Explicit re-downloads go through
// Download, which only checks that the intent is unlocked.
type UnlockGate struct {
	releaser adapter.DocumentReleaser
	log      *zerolog.Logger

	mu    sync.Mutex
	fired map[string]struct{}
}

func NewUnlockGate(releaser adapter.DocumentReleaser, logger *zerolog.Logger) *UnlockGate {
	l := logger.With().Str("component", "UnlockGate").Logger()
	return &UnlockGate{
		releaser: releaser,
		log:      &l,
		fired:    make(map[string]struct{}),
	}
}

// Unlocked reports whether the gated action is permitted for this intent.
func (g *UnlockGate) Unlocked(p *model.PaymentIntent) bool {
	return p != nil && p.Status == model.IntentStatusCompleted
}

// Completed fires the one-shot release for a just-completed intent. It
// returns true only for the call that actually fired; every later call for
// the same deposit id is a no-op.
func (g *UnlockGate) Completed(ctx context.Context, p *model.PaymentIntent) bool {
	if !g.Unlocked(p) {
		return false
	}
	g.mu.Lock()
	if _, done := g.fired[p.DepositID]; done {
		g.mu.Unlock()
		return false
	}
	g.fired[p.DepositID] = struct{}{}
	g.mu.Unlock()

	metrics.IncUnlockFired()
	if g.releaser != nil {
		if err := g.releaser.Release(ctx, p); err != nil {
			// the payment stays unlocked; the user can re-trigger the
			// download explicitly
			g.log.Error().Err(err).Str("deposit_id", p.DepositID).Msg("automatic document release failed")
		}
	}
	return true
}

// Download performs the gated action on explicit user request. Unlike the
// completion edge it may run any number of times while the intent is
// unlocked.
func (g *UnlockGate) Download(ctx context.Context, p *model.PaymentIntent) error {
	if !g.Unlocked(p) {
		return domain.ErrLocked
	}
	if g.releaser == nil {
		return nil
	}
	return g.releaser.Release(ctx, p)
}

// Forget drops latch state for a deposit id. Called by the retention sweeper
// when terminal intents are garbage-collected.
func (g *UnlockGate) Forget(depositIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range depositIDs {
		delete(g.fired, id)
	}
}
