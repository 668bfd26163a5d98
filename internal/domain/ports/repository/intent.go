package repository

import (
	"context"
	"time"

	"resume-checkout/internal/domain/model"
)

// IntentRepository persists payment intents keyed by the provider-assigned
// deposit id. Repositories MUST gracefully accept nil tx (non-transactional
// path); the concrete tx type is infra-defined (pgx.Tx for Postgres).
type IntentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByDepositID(ctx context.Context, tx Tx, depositID string) (*model.PaymentIntent, error)
	// FindActiveBySession returns the session's non-terminal intent, or
	// domain.ErrNotFound when the session has none.
	FindActiveBySession(ctx context.Context, tx Tx, sessionID string) (*model.PaymentIntent, error)
	// IncrementAttempts bumps the poll counter and returns the new count.
	IncrementAttempts(ctx context.Context, tx Tx, depositID string) (int, error)
	// DeleteTerminalBefore garbage-collects terminal intents whose last
	// update is older than cutoff. Returns the removed deposit ids.
	DeleteTerminalBefore(ctx context.Context, tx Tx, cutoff time.Time) ([]string, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.IntentStatus]int, error)
}
