package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrUnknownIntent      = errors.New("no intent stored for deposit id")
	ErrValidation         = errors.New("invalid payment details")
	ErrIntentTerminal     = errors.New("intent already in a terminal state")
	ErrActiveIntentExists = errors.New("session already has an active intent")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrLockNotAcquired    = errors.New("could not acquire intent lock")
	ErrLocked             = errors.New("download locked until payment completes")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Gateway errors. The payment adapter maps transport failures and
	// provider responses onto these; callers branch on them, never on
	// raw HTTP codes.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrInvalidDepositID   = errors.New("gateway response missing deposit id")
)
