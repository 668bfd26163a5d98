package payment

import (
	"context"
	"fmt"
	"sync"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway is an in-memory gateway for dev mode and tests. Deposits it
// creates complete on the second status query, which exercises the full
// pending -> processing -> completed path without a provider.
type NoopGateway struct {
	mu      sync.Mutex
	seq     int64
	queries map[string]int // depositID -> queries seen so far
}

func NewNoopGateway() *NoopGateway {
	return &NoopGateway{queries: make(map[string]int)}
}

func (g *NoopGateway) Name() string { return "noop" }

func (g *NoopGateway) CreateDeposit(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("noop-%d", g.seq)
	g.queries[id] = 0
	return adapter.CreateDepositResult{
		DepositID:      id,
		Status:         model.IntentStatusPending,
		ProviderStatus: "ACCEPTED",
	}, nil
}

func (g *NoopGateway) QueryStatus(ctx context.Context, depositID string) (model.StatusReport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.queries[depositID]
	if !ok {
		return model.StatusReport{}, fmt.Errorf("%w: noop: unknown deposit %s", domain.ErrGatewayUnavailable, depositID)
	}
	g.queries[depositID] = n + 1
	if n == 0 {
		return model.StatusReport{Status: model.IntentStatusProcessing, ProviderStatus: "SUBMITTED"}, nil
	}
	return model.StatusReport{Status: model.IntentStatusCompleted, ProviderStatus: "COMPLETED", Confirmed: true}, nil
}
