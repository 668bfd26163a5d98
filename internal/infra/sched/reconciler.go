package sched

import (
	"context"
	"errors"
	"sync"
	"time"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/metrics"
	"resume-checkout/internal/infra/worker"
	"resume-checkout/internal/usecase"

	"github.com/rs/zerolog"
)

// Reconciler drives open deposits to a terminal status by polling the
// gateway. The redirect callback is best-effort; this loop is the component
// that actually guarantees convergence when the user closes the tab or the
// aggregator never redirects.
type Reconciler struct {
	intents     usecase.IntentUseCase
	gateway     adapter.PaymentGateway
	pool        *worker.Pool
	interval    time.Duration
	maxAttempts int
	log         *zerolog.Logger

	active sync.Map // deposit id -> struct{}
}

func NewReconciler(
	intents usecase.IntentUseCase,
	gateway adapter.PaymentGateway,
	pool *worker.Pool,
	interval time.Duration,
	maxAttempts int,
	logger *zerolog.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 40
	}
	l := logger.With().Str("component", "Reconciler").Logger()
	return &Reconciler{
		intents:     intents,
		gateway:     gateway,
		pool:        pool,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         &l,
	}
}

// Watch starts a poll loop for the deposit. At most one watcher runs per
// deposit id; a second call while the first is alive is a no-op and returns
// false. The loop stops when ctx is cancelled, when the intent reaches a
// terminal status, or when the attempt budget runs out.
func (r *Reconciler) Watch(ctx context.Context, depositID string) bool {
	if _, loaded := r.active.LoadOrStore(depositID, struct{}{}); loaded {
		return false
	}
	task := func(poolCtx context.Context) error {
		defer r.active.Delete(depositID)
		r.poll(ctx, poolCtx, depositID)
		return nil
	}
	if err := r.pool.Submit(task); err != nil {
		// queue saturated; a watcher is cheap enough to run unpooled
		r.log.Warn().Err(err).Str("deposit_id", depositID).Msg("pool submit failed, running watcher unpooled")
		go func() { _ = task(context.Background()) }()
	}
	return true
}

// Watching reports whether a watcher is currently active for the deposit.
func (r *Reconciler) Watching(depositID string) bool {
	_, ok := r.active.Load(depositID)
	return ok
}

func (r *Reconciler) poll(ctx, poolCtx context.Context, depositID string) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			metrics.IncReconcileOutcome("cancelled")
			return
		case <-poolCtx.Done():
			metrics.IncReconcileOutcome("cancelled")
			return
		case <-t.C:
			if done := r.tick(ctx, depositID); done {
				return
			}
		}
	}
}

// tick runs one poll attempt and reports whether the watcher is finished.
func (r *Reconciler) tick(ctx context.Context, depositID string) bool {
	intent, err := r.intents.Get(ctx, depositID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownIntent) {
			// swept or never stored; nothing left to reconcile
			return true
		}
		r.log.Error().Err(err).Str("deposit_id", depositID).Msg("load intent failed")
		return false
	}
	if intent.Status.Terminal() {
		metrics.IncReconcileOutcome(string(intent.Status))
		return true
	}
	// Budget check happens before the query so an exhausted intent never
	// costs one more round trip.
	if intent.Attempts >= r.maxAttempts {
		r.timeOut(ctx, depositID)
		return true
	}
	if _, err := r.intents.RecordAttempt(ctx, depositID); err != nil {
		r.log.Warn().Err(err).Str("deposit_id", depositID).Msg("record attempt failed")
	}

	report, err := r.gateway.QueryStatus(ctx, depositID)
	if err != nil {
		// transport trouble still burns an attempt; the budget caps how long
		// an unreachable aggregator can keep an intent open
		metrics.IncReconcilePoll("transport_error")
		r.log.Warn().Err(err).Str("deposit_id", depositID).Msg("status query failed")
		return false
	}
	if report.Status == "" && report.ProviderStatus == "" {
		metrics.IncReconcilePoll("no_information")
		return false
	}
	metrics.IncReconcilePoll("reported")

	updated, _, err := r.intents.ApplyReport(ctx, depositID, report)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			r.log.Debug().Str("deposit_id", depositID).
				Str("reported", string(report.Status)).Msg("stale report ignored")
			return false
		}
		r.log.Error().Err(err).Str("deposit_id", depositID).Msg("apply report failed")
		return false
	}
	if updated.Status.Terminal() {
		metrics.IncReconcileOutcome(string(updated.Status))
		return true
	}
	return false
}

func (r *Reconciler) timeOut(ctx context.Context, depositID string) {
	_, transitioned, err := r.intents.ApplyReport(ctx, depositID, model.StatusReport{
		Status:        model.IntentStatusTimedOut,
		FailureReason: model.TimeoutReason,
	})
	if err != nil {
		r.log.Error().Err(err).Str("deposit_id", depositID).Msg("time out intent failed")
		return
	}
	if transitioned {
		metrics.IncReconcileOutcome(string(model.IntentStatusTimedOut))
		r.log.Info().Str("deposit_id", depositID).Int("attempts", r.maxAttempts).
			Msg("intent timed out after exhausting poll budget")
	}
}
