package sched

import (
	"context"
	"time"

	"resume-checkout/internal/domain/ports/repository"
	"resume-checkout/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// LatchForgetter drops per-deposit in-memory state. The unlock gate and the
// intent use case both hold maps keyed by deposit id that only the sweeper
// can shrink.
type LatchForgetter interface {
	Forget(depositIDs ...string)
}

// RetentionWorker deletes terminal intents past the retention window so the
// table stays bounded and phone numbers do not linger longer than needed.
type RetentionWorker struct {
	interval time.Duration
	window   time.Duration
	intents  repository.IntentRepository
	latches  []LatchForgetter
	log      *zerolog.Logger
}

func NewRetentionWorker(
	interval, window time.Duration,
	intents repository.IntentRepository,
	logger *zerolog.Logger,
	latches ...LatchForgetter,
) *RetentionWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	l := logger.With().Str("component", "RetentionWorker").Logger()
	return &RetentionWorker{
		interval: interval,
		window:   window,
		intents:  intents,
		latches:  latches,
		log:      &l,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("window", w.window).Msg("Starting retention worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping retention worker")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.window)
	swept, err := w.intents.DeleteTerminalBefore(ctx, nil, cutoff)
	if err != nil {
		w.log.Error().Err(err).Msg("retention sweep failed")
		return
	}
	if len(swept) > 0 {
		// drop the in-memory latches too, or their maps grow without bound
		for _, latch := range w.latches {
			latch.Forget(swept...)
		}
		metrics.AddIntentsSwept(len(swept))
		w.log.Info().Int("count", len(swept)).Msg("terminal intents swept")
	}
	if counts, err := w.intents.CountByStatus(ctx, nil); err == nil {
		w.log.Debug().Interface("by_status", counts).Msg("intent counts")
	}
}
