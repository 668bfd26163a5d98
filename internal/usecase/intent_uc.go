// File: internal/usecase/intent_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
	"resume-checkout/internal/domain/ports/repository"
	"resume-checkout/internal/infra/metrics"
)

// Compile-time check
var _ IntentUseCase = (*intentUC)(nil)

// Locker serializes transition application per deposit id across instances.
// The Redis locker implements this; tests use an in-memory stand-in.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CreateIntentRequest is the caller-facing shape for opening a deposit.
type CreateIntentRequest struct {
	Plan     model.Plan
	Amount   int64
	Currency string
	Phone    string
	Provider string
	Country  string
}

type IntentUseCase interface {
	// Create opens a deposit with the gateway and stores a pending intent.
	// A session with an active (non-terminal) intent gets that intent back
	// with resumed=true instead of a second deposit.
	Create(ctx context.Context, sessionID string, req CreateIntentRequest) (intent *model.PaymentIntent, resumed bool, err error)
	// ApplyReport folds one reconciliation signal (poll response or
	// callback) into the stored intent under per-deposit mutual exclusion.
	// Reports for unknown deposit ids fail with domain.ErrUnknownIntent.
	ApplyReport(ctx context.Context, depositID string, report model.StatusReport) (*model.PaymentIntent, bool, error)
	// RecordAttempt bumps the poll counter and returns the new count.
	RecordAttempt(ctx context.Context, depositID string) (int, error)
	Get(ctx context.Context, depositID string) (*model.PaymentIntent, error)
}

type intentUC struct {
	intents  repository.IntentRepository
	txm      repository.TransactionManager
	index    repository.ActiveSessionIndex
	gateway  adapter.PaymentGateway
	locker   Locker
	gate     *UnlockGate
	notifier adapter.OpsNotifier
	indexTTL time.Duration
	lockTTL  time.Duration
	log      *zerolog.Logger

	// in-process serialization per deposit id; the Locker extends the same
	// guarantee across instances
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewIntentUseCase(
	intents repository.IntentRepository,
	txm repository.TransactionManager,
	index repository.ActiveSessionIndex,
	gateway adapter.PaymentGateway,
	locker Locker,
	gate *UnlockGate,
	notifier adapter.OpsNotifier,
	indexTTL time.Duration,
	logger *zerolog.Logger,
) *intentUC {
	if indexTTL <= 0 {
		indexTTL = 30 * time.Minute
	}
	l := logger.With().Str("component", "IntentUC").Logger()
	return &intentUC{
		intents:  intents,
		txm:      txm,
		index:    index,
		gateway:  gateway,
		locker:   locker,
		gate:     gate,
		notifier: notifier,
		indexTTL: indexTTL,
		lockTTL:  10 * time.Second,
		log:      &l,
		locks:    make(map[string]*sync.Mutex),
	}
}

func validateCreate(req CreateIntentRequest) error {
	if strings.TrimSpace(req.Phone) == "" {
		return fmt.Errorf("%w: phone is required", domain.ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if _, ok := model.ParsePlan(string(req.Plan)); !ok {
		return fmt.Errorf("%w: unknown plan %q", domain.ErrValidation, req.Plan)
	}
	if strings.TrimSpace(req.Provider) == "" {
		return fmt.Errorf("%w: mobile-money provider is required", domain.ErrValidation)
	}
	return nil
}

func (u *intentUC) Create(ctx context.Context, sessionID string, req CreateIntentRequest) (*model.PaymentIntent, bool, error) {
	// Reject bad input before any network call.
	if err := validateCreate(req); err != nil {
		return nil, false, err
	}

	// One non-terminal intent per checkout session: a second create resumes
	// the active one.
	if existing, err := u.activeIntent(ctx, sessionID); err == nil {
		u.log.Info().Str("session_id", sessionID).Str("deposit_id", existing.DepositID).
			Msg("create resumed active intent")
		return existing, true, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	res, err := u.gateway.CreateDeposit(ctx, adapter.CreateDepositRequest{
		Plan:     req.Plan,
		Amount:   req.Amount,
		Currency: req.Currency,
		Phone:    req.Phone,
		Provider: req.Provider,
		Country:  req.Country,
	})
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	intent := model.NewIntent(res.DepositID, sessionID, req.Plan, req.Amount, req.Currency,
		req.Phone, req.Provider, req.Country, res.ProviderStatus, now)
	if err := u.intents.Save(ctx, nil, intent); err != nil {
		return nil, false, err
	}
	if err := u.index.SetActive(ctx, sessionID, intent.DepositID, u.indexTTL); err != nil {
		// index is a cache over the store; creation still succeeded
		u.log.Warn().Err(err).Str("deposit_id", intent.DepositID).Msg("active session index update failed")
	}
	metrics.IncIntent(string(intent.Status))

	// The gateway may acknowledge (or even settle) synchronously; converge
	// through the same writer path as the poller and the callback.
	if res.Status != "" && res.Status != model.IntentStatusPending {
		if updated, _, err := u.ApplyReport(ctx, intent.DepositID, model.StatusReport{
			Status:         res.Status,
			ProviderStatus: res.ProviderStatus,
			Confirmed:      res.Status == model.IntentStatusCompleted,
		}); err == nil {
			intent = updated
		}
	}
	return intent, false, nil
}

// activeIntent resolves the session's non-terminal intent. The Redis index is
// the fast path; a miss, an orphaned entry, or an entry whose intent has gone
// terminal (a failed Clear) falls back to the store, which is authoritative.
func (u *intentUC) activeIntent(ctx context.Context, sessionID string) (*model.PaymentIntent, error) {
	if depositID, err := u.index.GetActive(ctx, sessionID); err == nil {
		if p, err := u.intents.FindByDepositID(ctx, nil, depositID); err == nil && !p.Status.Terminal() {
			return p, nil
		}
	}
	return u.intents.FindActiveBySession(ctx, nil, sessionID)
}

func (u *intentUC) ApplyReport(ctx context.Context, depositID string, report model.StatusReport) (*model.PaymentIntent, bool, error) {
	unlock := u.lockDeposit(depositID)
	defer unlock()

	if u.locker != nil {
		token, err := u.locker.TryLock(ctx, "intent_lock:"+depositID, u.lockTTL)
		if err != nil {
			return nil, false, err
		}
		defer func() { _ = u.locker.Unlock(ctx, "intent_lock:"+depositID, token) }()
	}

	// Load and save run on the same transaction so the row lock taken by
	// FindByDepositID covers the whole read-modify-write.
	var stored, next *model.PaymentIntent
	var transitioned bool
	apply := func(ctx context.Context, tx repository.Tx) error {
		s, err := u.intents.FindByDepositID(ctx, tx, depositID)
		if err != nil {
			return err
		}
		stored = s
		n, tr, err := s.Apply(report, time.Now())
		if err != nil {
			return err
		}
		next, transitioned = &n, tr
		if !tr && n.ProviderStatus == s.ProviderStatus {
			return nil
		}
		return u.intents.Save(ctx, tx, &n)
	}

	var err error
	if u.txm != nil {
		err = u.txm.WithTx(ctx, pgx.TxOptions{}, apply)
	} else {
		err = apply(ctx, nil)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, domain.ErrUnknownIntent
		}
		return stored, false, err
	}
	if !transitioned {
		return next, false, nil
	}
	metrics.IncIntentTransition(string(stored.Status), string(next.Status))
	metrics.IncIntent(string(next.Status))
	u.log.Info().Str("deposit_id", depositID).
		Str("from", string(stored.Status)).Str("to", string(next.Status)).
		Str("provider_status", next.ProviderStatus).
		Msg("intent transition")

	if next.Status.Terminal() {
		if err := u.index.Clear(ctx, next.SessionID); err != nil {
			u.log.Warn().Err(err).Str("session_id", next.SessionID).Msg("active session index clear failed")
		}
		if u.notifier != nil {
			u.notifier.NotifyTerminal(ctx, next)
		}
		if next.Status == model.IntentStatusCompleted && u.gate != nil {
			u.gate.Completed(ctx, next)
		}
	}
	return next, true, nil
}

func (u *intentUC) RecordAttempt(ctx context.Context, depositID string) (int, error) {
	return u.intents.IncrementAttempts(ctx, nil, depositID)
}

func (u *intentUC) Get(ctx context.Context, depositID string) (*model.PaymentIntent, error) {
	p, err := u.intents.FindByDepositID(ctx, nil, depositID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnknownIntent
		}
		return nil, err
	}
	return p, nil
}

// lockDeposit takes the per-deposit in-process mutex and returns its release.
func (u *intentUC) lockDeposit(depositID string) func() {
	u.mu.Lock()
	m, ok := u.locks[depositID]
	if !ok {
		m = &sync.Mutex{}
		u.locks[depositID] = m
	}
	u.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Forget drops the per-deposit mutexes for swept intents so the lock map
// stays bounded. Called by the retention sweeper alongside UnlockGate.Forget.
func (u *intentUC) Forget(depositIDs ...string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, id := range depositIDs {
		delete(u.locks, id)
	}
}
