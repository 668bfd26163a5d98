package repository

import (
	"context"
	"time"
)

// ActiveSessionIndex is a fast lookup from checkout session to its active
// (non-terminal) deposit id. It is an index over the intent store, not a
// source of truth; entries expire on their own and are cleared eagerly when
// an intent goes terminal.
type ActiveSessionIndex interface {
	SetActive(ctx context.Context, sessionID, depositID string, ttl time.Duration) error
	// GetActive returns the active deposit id, or domain.ErrNotFound.
	GetActive(ctx context.Context, sessionID string) (string, error)
	Clear(ctx context.Context, sessionID string) error
}
