package adapter

import (
	"context"

	"resume-checkout/internal/domain/model"
)

// CreateDepositRequest carries everything the provider needs to open a
// mobile-money deposit. Validation happens before this reaches the adapter.
type CreateDepositRequest struct {
	Plan     model.Plan
	Amount   int64
	Currency string
	Phone    string
	Provider string // carrier identifier, e.g. "mtn", "airtel"
	Country  string
}

// CreateDepositResult is the provider's acknowledgement of a new deposit.
type CreateDepositResult struct {
	DepositID      string
	Status         model.IntentStatus
	ProviderStatus string
}

// PaymentGateway is the hex port for the mobile-money provider. Adapters are
// stateless request/response wrappers; all state lives in the intent store.
type PaymentGateway interface {
	Name() string

	// CreateDeposit opens a deposit with the provider and returns its
	// assigned deposit id. Fails with domain.ErrGatewayUnavailable on
	// transport errors or 5xx, domain.ErrGatewayRejected (wrapped with the
	// provider's reason) on 4xx, and domain.ErrInvalidDepositID when a
	// success response omits the id.
	CreateDeposit(ctx context.Context, req CreateDepositRequest) (CreateDepositResult, error)

	// QueryStatus fetches the provider's view of the deposit. Transport
	// errors return domain.ErrGatewayUnavailable; a non-2xx response is
	// "no new information" (zero-value report, nil error) so pollers retry
	// instead of aborting.
	QueryStatus(ctx context.Context, depositID string) (model.StatusReport, error)
}
