//go:build !integration

package web

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/infra/sched"
	"resume-checkout/internal/infra/worker"
	"resume-checkout/internal/usecase"

	"github.com/rs/zerolog"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// --- Mock use case and gateway ---

type mockIntentUC struct {
	CreateFunc        func(ctx context.Context, sessionID string, req usecase.CreateIntentRequest) (*model.PaymentIntent, bool, error)
	ApplyReportFunc   func(ctx context.Context, depositID string, report model.StatusReport) (*model.PaymentIntent, bool, error)
	RecordAttemptFunc func(ctx context.Context, depositID string) (int, error)
	GetFunc           func(ctx context.Context, depositID string) (*model.PaymentIntent, error)
}

var _ usecase.IntentUseCase = (*mockIntentUC)(nil)

func (m *mockIntentUC) Create(ctx context.Context, sessionID string, req usecase.CreateIntentRequest) (*model.PaymentIntent, bool, error) {
	if m.CreateFunc == nil {
		return nil, false, domain.ErrOperationFailed
	}
	return m.CreateFunc(ctx, sessionID, req)
}

func (m *mockIntentUC) ApplyReport(ctx context.Context, depositID string, report model.StatusReport) (*model.PaymentIntent, bool, error) {
	if m.ApplyReportFunc == nil {
		return nil, false, domain.ErrUnknownIntent
	}
	return m.ApplyReportFunc(ctx, depositID, report)
}

func (m *mockIntentUC) RecordAttempt(ctx context.Context, depositID string) (int, error) {
	if m.RecordAttemptFunc == nil {
		return 0, nil
	}
	return m.RecordAttemptFunc(ctx, depositID)
}

func (m *mockIntentUC) Get(ctx context.Context, depositID string) (*model.PaymentIntent, error) {
	if m.GetFunc == nil {
		return nil, domain.ErrUnknownIntent
	}
	return m.GetFunc(ctx, depositID)
}

type mockGateway struct {
	CreateDepositFunc func(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error)
	QueryStatusFunc   func(ctx context.Context, depositID string) (model.StatusReport, error)
}

var _ adapter.PaymentGateway = (*mockGateway)(nil)

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) CreateDeposit(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error) {
	if m.CreateDepositFunc == nil {
		return adapter.CreateDepositResult{}, domain.ErrGatewayUnavailable
	}
	return m.CreateDepositFunc(ctx, req)
}

func (m *mockGateway) QueryStatus(ctx context.Context, depositID string) (model.StatusReport, error) {
	if m.QueryStatusFunc == nil {
		return model.StatusReport{}, nil
	}
	return m.QueryStatusFunc(ctx, depositID)
}

type recordingReleaser struct {
	mu       sync.Mutex
	released []string
	Err      error
}

func (r *recordingReleaser) Release(ctx context.Context, p *model.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.released = append(r.released, p.DepositID)
	return nil
}

func (r *recordingReleaser) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.released)
}

// --- Test fixture ---

const testSessionID = "sess-1"

var testPlans = map[string]int64{
	"student":  500,
	"pro":      900,
	"advanced": 1500,
}

type fixture struct {
	uc         *mockIntentUC
	gw         *mockGateway
	releaser   *recordingReleaser
	reconciler *sched.Reconciler
	handler    http.Handler
	token      string
}

// newFixture wires a Server over mocks with a real gate and reconciler. The
// reconciler's pool is never started so Watch only registers watchers.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := newTestLogger()
	uc := &mockIntentUC{}
	gw := &mockGateway{}
	releaser := &recordingReleaser{}
	gate := usecase.NewUnlockGate(releaser, logger)
	pool := worker.NewPool(2, logger)
	reconciler := sched.NewReconciler(uc, gw, pool, time.Hour, 40, logger)
	sessions := NewSessionManager("test-hmac-secret-please-change", time.Minute)
	token, err := sessions.Mint(testSessionID)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	srv := NewServer(uc, gw, gate, reconciler, sessions, testPlans, "USD", "COD", "/checkout", logger)
	return &fixture{
		uc:         uc,
		gw:         gw,
		releaser:   releaser,
		reconciler: reconciler,
		handler:    srv.Routes(),
		token:      token,
	}
}

func testIntent(depositID string, status model.IntentStatus) *model.PaymentIntent {
	now := time.Now()
	p := model.NewIntent(depositID, testSessionID, model.PlanPro, 900, "USD", "+243900000001", "mtn", "COD", "", now)
	p.Status = status
	return p
}
