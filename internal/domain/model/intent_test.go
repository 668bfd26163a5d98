//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
)

func intentIn(status model.IntentStatus) model.PaymentIntent {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := *model.NewIntent("D1", "sess-1", model.PlanPro, 2, "USD", "+243999000000", "mtn", "COD", "PENDING", now)
	p.Status = status
	if status == model.IntentStatusFailed {
		p.FailureReason = "payment failed"
	}
	if status == model.IntentStatusTimedOut {
		p.FailureReason = model.TimeoutReason
	}
	return p
}

// TestApply_TransitionTable walks every (from, to) pair and checks it against
// the allowed edges. Pairs outside the table must leave the intent untouched.
func TestApply_TransitionTable(t *testing.T) {
	now := time.Now()
	statuses := []model.IntentStatus{
		model.IntentStatusPending,
		model.IntentStatusProcessing,
		model.IntentStatusCompleted,
		model.IntentStatusFailed,
		model.IntentStatusTimedOut,
	}

	type outcome struct {
		transitioned bool
		invalidEdge  bool
	}
	expect := map[model.IntentStatus]map[model.IntentStatus]outcome{
		model.IntentStatusPending: {
			model.IntentStatusPending:    {false, false}, // re-ack, no transition
			model.IntentStatusProcessing: {true, false},
			model.IntentStatusCompleted:  {true, false},
			model.IntentStatusFailed:     {true, false},
			model.IntentStatusTimedOut:   {true, false},
		},
		model.IntentStatusProcessing: {
			model.IntentStatusPending:    {false, true}, // stale ack may not roll back
			model.IntentStatusProcessing: {false, false},
			model.IntentStatusCompleted:  {true, false},
			model.IntentStatusFailed:     {true, false},
			model.IntentStatusTimedOut:   {true, false},
		},
		// completed is sticky against everything
		model.IntentStatusCompleted: {
			model.IntentStatusPending:    {false, false},
			model.IntentStatusProcessing: {false, false},
			model.IntentStatusCompleted:  {false, false},
			model.IntentStatusFailed:     {false, false},
			model.IntentStatusTimedOut:   {false, false},
		},
		// failed / timed_out only yield to a confirmed completion,
		// and these reports are unconfirmed
		model.IntentStatusFailed: {
			model.IntentStatusPending:    {false, false},
			model.IntentStatusProcessing: {false, false},
			model.IntentStatusCompleted:  {false, false},
			model.IntentStatusFailed:     {false, false},
			model.IntentStatusTimedOut:   {false, false},
		},
		model.IntentStatusTimedOut: {
			model.IntentStatusPending:    {false, false},
			model.IntentStatusProcessing: {false, false},
			model.IntentStatusCompleted:  {false, false},
			model.IntentStatusFailed:     {false, false},
			model.IntentStatusTimedOut:   {false, false},
		},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				p := intentIn(from)
				next, transitioned, err := p.Apply(model.StatusReport{Status: to}, now)

				want := expect[from][to]
				if want.invalidEdge {
					if !errors.Is(err, domain.ErrInvalidTransition) {
						t.Fatalf("expected ErrInvalidTransition, got %v", err)
					}
					if next.Status != from {
						t.Fatalf("rejected edge mutated status to %s", next.Status)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if transitioned != want.transitioned {
					t.Fatalf("transitioned=%v, want %v", transitioned, want.transitioned)
				}
				if want.transitioned && next.Status != to {
					t.Fatalf("status=%s, want %s", next.Status, to)
				}
				if !want.transitioned && next.Status != from {
					t.Fatalf("status moved to %s without a transition", next.Status)
				}
			})
		}
	}
}

func TestApply_CompletionSideEffects(t *testing.T) {
	now := time.Now()
	p := intentIn(model.IntentStatusProcessing)

	next, transitioned, err := p.Apply(model.StatusReport{
		Status:         model.IntentStatusCompleted,
		ProviderStatus: "COMPLETED",
		Confirmed:      true,
	}, now)
	if err != nil || !transitioned {
		t.Fatalf("expected completion transition, got transitioned=%v err=%v", transitioned, err)
	}
	if next.Reference != next.DepositID {
		t.Errorf("reference=%q, want deposit id %q", next.Reference, next.DepositID)
	}
	if next.PaidAt == nil || !next.PaidAt.Equal(now) {
		t.Errorf("paidAt not set to transition time: %v", next.PaidAt)
	}
	if next.FailureReason != "" {
		t.Errorf("failureReason should be cleared, got %q", next.FailureReason)
	}
}

func TestApply_FailureSideEffects(t *testing.T) {
	now := time.Now()

	t.Run("failed records the provider reason", func(t *testing.T) {
		p := intentIn(model.IntentStatusProcessing)
		next, _, err := p.Apply(model.StatusReport{
			Status:        model.IntentStatusFailed,
			FailureReason: "PAYER_LIMIT_REACHED",
		}, now)
		if err != nil {
			t.Fatal(err)
		}
		if next.FailureReason != "PAYER_LIMIT_REACHED" {
			t.Errorf("failureReason=%q", next.FailureReason)
		}
	})

	t.Run("timed_out defaults its reason", func(t *testing.T) {
		p := intentIn(model.IntentStatusPending)
		next, _, err := p.Apply(model.StatusReport{Status: model.IntentStatusTimedOut}, now)
		if err != nil {
			t.Fatal(err)
		}
		if next.FailureReason != model.TimeoutReason {
			t.Errorf("failureReason=%q, want %q", next.FailureReason, model.TimeoutReason)
		}
	})
}

// TestApply_Precedence covers the race window between optimistic failure
// detection and a late success callback.
func TestApply_Precedence(t *testing.T) {
	now := time.Now()

	t.Run("confirmed completion overrides failed", func(t *testing.T) {
		p := intentIn(model.IntentStatusFailed)
		next, transitioned, err := p.Apply(model.StatusReport{
			Status:         model.IntentStatusCompleted,
			ProviderStatus: "COMPLETED",
			Confirmed:      true,
		}, now)
		if err != nil || !transitioned {
			t.Fatalf("transitioned=%v err=%v", transitioned, err)
		}
		if next.Status != model.IntentStatusCompleted {
			t.Fatalf("status=%s", next.Status)
		}
	})

	t.Run("confirmed completion overrides timed_out", func(t *testing.T) {
		p := intentIn(model.IntentStatusTimedOut)
		next, transitioned, _ := p.Apply(model.StatusReport{
			Status:    model.IntentStatusCompleted,
			Confirmed: true,
		}, now)
		if !transitioned || next.Status != model.IntentStatusCompleted {
			t.Fatalf("status=%s transitioned=%v", next.Status, transitioned)
		}
	})

	t.Run("unconfirmed completion does not override failed", func(t *testing.T) {
		p := intentIn(model.IntentStatusFailed)
		next, transitioned, _ := p.Apply(model.StatusReport{Status: model.IntentStatusCompleted}, now)
		if transitioned || next.Status != model.IntentStatusFailed {
			t.Fatalf("status=%s transitioned=%v", next.Status, transitioned)
		}
	})

	t.Run("failed after completed is ignored", func(t *testing.T) {
		p := intentIn(model.IntentStatusCompleted)
		next, transitioned, err := p.Apply(model.StatusReport{
			Status:        model.IntentStatusFailed,
			FailureReason: "late failure",
		}, now)
		if err != nil || transitioned {
			t.Fatalf("transitioned=%v err=%v", transitioned, err)
		}
		if next.Status != model.IntentStatusCompleted || next.FailureReason != "" {
			t.Fatalf("completed intent mutated: %+v", next)
		}
	})
}

func TestApply_Idempotent(t *testing.T) {
	now := time.Now()
	p := intentIn(model.IntentStatusProcessing)
	report := model.StatusReport{Status: model.IntentStatusCompleted, Confirmed: true}

	first, transitioned, err := p.Apply(report, now)
	if err != nil || !transitioned {
		t.Fatalf("first apply: transitioned=%v err=%v", transitioned, err)
	}
	second, transitioned, err := first.Apply(report, now.Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if transitioned {
		t.Error("replaying the terminal report must not transition again")
	}
	if second != first {
		t.Errorf("replay changed stored state:\n first=%+v\nsecond=%+v", first, second)
	}
}

func TestApply_NoInformation(t *testing.T) {
	p := intentIn(model.IntentStatusProcessing)
	next, transitioned, err := p.Apply(model.StatusReport{}, time.Now())
	if err != nil || transitioned {
		t.Fatalf("empty report must be a no-op, transitioned=%v err=%v", transitioned, err)
	}
	if next != p {
		t.Errorf("empty report mutated intent")
	}
}
