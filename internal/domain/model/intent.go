package model

import (
	"time"

	"resume-checkout/internal/domain"
)

type IntentStatus string

// Intent lifecycle. There is no stored "idle" status: idle is the absence of
// an intent for the checkout session.
const (
	IntentStatusPending    IntentStatus = "pending"    // created with provider; awaiting first acknowledgement
	IntentStatusProcessing IntentStatus = "processing" // provider acknowledged; awaiting user approval in their wallet app
	IntentStatusCompleted  IntentStatus = "completed"  // provider confirmed the deposit
	IntentStatusFailed     IntentStatus = "failed"     // provider reported failure or rejection
	IntentStatusTimedOut   IntentStatus = "timed_out"  // polling budget exhausted without a terminal report
)

// Terminal reports whether no further transition is permitted from s.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentStatusCompleted, IntentStatusFailed, IntentStatusTimedOut:
		return true
	}
	return false
}

type Plan string

const (
	PlanStudent  Plan = "student"
	PlanPro      Plan = "pro"
	PlanAdvanced Plan = "advanced"
)

// ParsePlan validates a plan name coming in over the wire.
func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanStudent, PlanPro, PlanAdvanced:
		return Plan(s), true
	}
	return "", false
}

// TimeoutReason is the failure reason recorded when the reconciliation
// budget runs out.
const TimeoutReason = "confirmation timed out"

// PaymentIntent records one attempted mobile-money deposit, keyed by the
// provider-assigned deposit id. It is the single source of truth for the
// payment's status; all readers get snapshots and all writers go through
// Apply.
type PaymentIntent struct {
	DepositID string // provider-assigned, immutable once set
	SessionID string // owning checkout session
	Plan      Plan
	Amount    int64 // minor units; mobile-money deposits are whole-unit
	Currency  string
	Phone     string
	Provider  string // mobile-money carrier, e.g. "mtn"
	Country   string

	Status         IntentStatus
	ProviderStatus string // raw provider status string, diagnostics only
	Reference      string // = DepositID, set on completion
	FailureReason  string // set on failed / timed_out

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
	Attempts  int // status polls performed so far
}

// StatusReport is one reconciliation signal (a poll response or an ingested
// callback) already mapped onto the canonical status enum.
type StatusReport struct {
	Status         IntentStatus
	ProviderStatus string
	FailureReason  string
	// Confirmed marks the provider's strongest signal (its explicit
	// COMPLETED code). Only a confirmed completion may override an
	// earlier failed/timed_out outcome.
	Confirmed bool
}

// NewIntent builds a fresh pending intent for a just-created deposit.
func NewIntent(depositID, sessionID string, plan Plan, amount int64, currency, phone, provider, country, providerStatus string, now time.Time) *PaymentIntent {
	return &PaymentIntent{
		DepositID:      depositID,
		SessionID:      sessionID,
		Plan:           plan,
		Amount:         amount,
		Currency:       currency,
		Phone:          phone,
		Provider:       provider,
		Country:        country,
		Status:         IntentStatusPending,
		ProviderStatus: providerStatus,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// allowed edges of the status machine; everything else is rejected.
func canTransition(from, to IntentStatus) bool {
	switch from {
	case IntentStatusPending:
		return to == IntentStatusProcessing || to.Terminal()
	case IntentStatusProcessing:
		return to.Terminal()
	}
	return false
}

// Apply folds a status report into the intent and returns the updated copy
// plus whether a state transition occurred. It is idempotent and safe to
// call with out-of-order reports:
//
//   - completed is sticky: later failure reports are ignored;
//   - a confirmed completion overrides an earlier failed/timed_out (the race
//     between optimistic failure detection and a late success callback);
//   - re-applying the current status refreshes ProviderStatus without
//     counting as a transition;
//   - edges outside the table (e.g. processing back to pending) return
//     ErrInvalidTransition and leave the intent untouched.
func (p PaymentIntent) Apply(r StatusReport, now time.Time) (PaymentIntent, bool, error) {
	if r.Status == "" {
		// "no new information" poll response
		return p, false, nil
	}

	if p.Status.Terminal() {
		if p.Status == IntentStatusCompleted {
			return p, false, nil
		}
		// failed / timed_out: only a provider-confirmed completion wins
		if r.Status == IntentStatusCompleted && r.Confirmed {
			return p.complete(r, now), true, nil
		}
		return p, false, nil
	}

	if r.Status == p.Status {
		if r.ProviderStatus != "" && r.ProviderStatus != p.ProviderStatus {
			p.ProviderStatus = r.ProviderStatus
			p.UpdatedAt = now
		}
		return p, false, nil
	}

	if !canTransition(p.Status, r.Status) {
		return p, false, domain.ErrInvalidTransition
	}

	switch r.Status {
	case IntentStatusProcessing:
		p.Status = IntentStatusProcessing
		if r.ProviderStatus != "" {
			p.ProviderStatus = r.ProviderStatus
		}
	case IntentStatusCompleted:
		return p.complete(r, now), true, nil
	case IntentStatusFailed:
		p.Status = IntentStatusFailed
		p.FailureReason = r.FailureReason
		if p.FailureReason == "" {
			p.FailureReason = "payment failed"
		}
		if r.ProviderStatus != "" {
			p.ProviderStatus = r.ProviderStatus
		}
	case IntentStatusTimedOut:
		p.Status = IntentStatusTimedOut
		p.FailureReason = r.FailureReason
		if p.FailureReason == "" {
			p.FailureReason = TimeoutReason
		}
	}
	p.UpdatedAt = now
	return p, true, nil
}

func (p PaymentIntent) complete(r StatusReport, now time.Time) PaymentIntent {
	p.Status = IntentStatusCompleted
	p.Reference = p.DepositID
	p.FailureReason = ""
	if r.ProviderStatus != "" {
		p.ProviderStatus = r.ProviderStatus
	}
	paid := now
	p.PaidAt = &paid
	p.UpdatedAt = now
	return p
}
