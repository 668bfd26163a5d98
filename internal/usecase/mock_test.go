//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// =============================
// Repositories
// =============================

// MockIntentRepo is an in-memory IntentRepository with per-method overrides.
type MockIntentRepo struct {
	mu      sync.Mutex
	intents map[string]*model.PaymentIntent

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error

	// tracing of invocations
	Saves         int
	ActiveLookups int
}

var _ repository.IntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{intents: make(map[string]*model.PaymentIntent)}
}

func (m *MockIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves++
	cp := *p
	m.intents[p.DepositID] = &cp
	return nil
}

func (m *MockIntentRepo) FindByDepositID(ctx context.Context, tx repository.Tx, depositID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.intents[depositID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) FindActiveBySession(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ActiveLookups++
	for _, p := range m.intents {
		if p.SessionID == sessionID && !p.Status.Terminal() {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockIntentRepo) IncrementAttempts(ctx context.Context, tx repository.Tx, depositID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.intents[depositID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p.Attempts++
	return p.Attempts, nil
}

func (m *MockIntentRepo) DeleteTerminalBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept []string
	for id, p := range m.intents {
		if p.Status.Terminal() && p.UpdatedAt.Before(cutoff) {
			swept = append(swept, id)
			delete(m.intents, id)
		}
	}
	return swept, nil
}

func (m *MockIntentRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.IntentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.IntentStatus]int)
	for _, p := range m.intents {
		counts[p.Status]++
	}
	return counts, nil
}

// Seed stores an intent directly, bypassing overrides.
func (m *MockIntentRepo) Seed(p *model.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.intents[p.DepositID] = &cp
}

// ---- Mock ActiveSessionIndex ----

type MockSessionIndex struct {
	mu     sync.Mutex
	active map[string]string

	SetErr error
}

var _ repository.ActiveSessionIndex = (*MockSessionIndex)(nil)

func NewMockSessionIndex() *MockSessionIndex {
	return &MockSessionIndex{active: make(map[string]string)}
}

func (m *MockSessionIndex) SetActive(ctx context.Context, sessionID, depositID string, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[sessionID] = depositID
	return nil
}

func (m *MockSessionIndex) GetActive(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.active[sessionID]; ok {
		return d, nil
	}
	return "", domain.ErrNotFound
}

func (m *MockSessionIndex) Clear(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, sessionID)
	return nil
}

func (m *MockSessionIndex) Has(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[sessionID]
	return ok
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockGateway struct {
	mu sync.Mutex

	CreateDepositFunc func(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error)
	QueryStatusFunc   func(ctx context.Context, depositID string) (model.StatusReport, error)

	// tracing of invocations
	Calls struct {
		Create int
		Query  int
	}
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreateDeposit(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error) {
	m.mu.Lock()
	m.Calls.Create++
	m.mu.Unlock()
	if m.CreateDepositFunc != nil {
		return m.CreateDepositFunc(ctx, req)
	}
	return adapter.CreateDepositResult{DepositID: "dep-1", Status: model.IntentStatusPending}, nil
}

func (m *MockGateway) QueryStatus(ctx context.Context, depositID string) (model.StatusReport, error) {
	m.mu.Lock()
	m.Calls.Query++
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, depositID)
	}
	return model.StatusReport{}, nil
}

func (m *MockGateway) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.Create
}

// ---- Mock Releaser / Notifier ----

type MockReleaser struct {
	mu       sync.Mutex
	Released []string
	Err      error
}

var _ adapter.DocumentReleaser = (*MockReleaser)(nil)

func (m *MockReleaser) Release(ctx context.Context, p *model.PaymentIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Released = append(m.Released, p.DepositID)
	return nil
}

func (m *MockReleaser) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Released)
}

type MockNotifier struct {
	mu       sync.Mutex
	Notified []model.IntentStatus
}

var _ adapter.OpsNotifier = (*MockNotifier)(nil)

func (m *MockNotifier) NotifyTerminal(ctx context.Context, p *model.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notified = append(m.Notified, p.Status)
}

func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Notified)
}

// ---- Fake Locker ----

// FakeLocker hands out tokens like the Redis locker but in process.
type FakeLocker struct {
	mu    sync.Mutex
	held  map[string]string
	Locks int
}

func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: make(map[string]string)}
}

func (l *FakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return "", domain.ErrLockNotAcquired
	}
	token := "tok"
	l.held[key] = token
	l.Locks++
	return token, nil
}

func (l *FakeLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *FakeLocker) HeldCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
