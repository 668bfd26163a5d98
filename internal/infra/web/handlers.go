package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/infra/logging"
	"resume-checkout/internal/infra/metrics"
	"resume-checkout/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type createPaymentRequest struct {
	Plan     string `json:"plan"`
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
	Country  string `json:"country,omitempty"`
	Currency string `json:"currency,omitempty"`
}

type paymentResponse struct {
	DepositID string `json:"depositId"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type paymentSnapshot struct {
	DepositID      string `json:"depositId"`
	Status         string `json:"status"`
	ProviderStatus string `json:"providerStatus,omitempty"`
	Reference      string `json:"reference,omitempty"`
	FailureReason  string `json:"failureReason,omitempty"`
	Attempts       int    `json:"attempts"`
}

func snapshotOf(p *model.PaymentIntent) paymentSnapshot {
	return paymentSnapshot{
		DepositID:      p.DepositID,
		Status:         string(p.Status),
		ProviderStatus: p.ProviderStatus,
		Reference:      p.Reference,
		FailureReason:  p.FailureReason,
		Attempts:       p.Attempts,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, _ := SessionFromContext(ctx)

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	plan, ok := model.ParsePlan(req.Plan)
	if !ok {
		http.Error(w, "Unknown plan", http.StatusBadRequest)
		return
	}
	amount, ok := s.planPrice(plan)
	if !ok {
		http.Error(w, "Plan is not purchasable", http.StatusBadRequest)
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	country := req.Country
	if country == "" {
		country = s.country
	}

	intent, resumed, err := s.intents.Create(ctx, sessionID, usecase.CreateIntentRequest{
		Plan:     plan,
		Amount:   amount,
		Currency: currency,
		Phone:    req.Phone,
		Provider: req.Provider,
		Country:  country,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrGatewayRejected):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, domain.ErrGatewayUnavailable):
			http.Error(w, "Payment gateway unavailable", http.StatusServiceUnavailable)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("create intent failed")
			http.Error(w, "Failed to create payment", http.StatusInternalServerError)
		}
		return
	}

	if !intent.Status.Terminal() {
		// watcher outlives this request; the pool context bounds it
		s.reconciler.Watch(context.Background(), intent.DepositID)
	}

	code := http.StatusCreated
	if resumed {
		code = http.StatusOK
	}
	writeJSON(w, code, paymentResponse{
		DepositID: intent.DepositID,
		Status:    string(intent.Status),
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, _ := SessionFromContext(ctx)
	depositID := chi.URLParam(r, "depositID")

	intent, err := s.intents.Get(ctx, depositID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownIntent) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load payment", http.StatusInternalServerError)
		return
	}
	if intent.SessionID != sessionID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(intent))
}

// handleCallback ingests the aggregator's browser redirect. The success
// marker in the query is never trusted; the gateway is re-queried and the
// answer folded in through the same path the poller uses. Whatever happens
// the user ends up back on the checkout page.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logging.With(ctx, s.log)

	depositID := r.URL.Query().Get("depositId")
	if depositID == "" {
		metrics.IncCallback("bad_request")
		l.Warn().Msg("callback without depositId")
		s.redirectBack(w, r)
		return
	}
	ctx = logging.WithDepositID(ctx, depositID)
	l = logging.With(ctx, s.log)

	report, err := s.gateway.QueryStatus(ctx, depositID)
	if err != nil {
		// the poller will converge the intent; the redirect must not fail
		metrics.IncCallback("requery_failed")
		l.Warn().Err(err).Msg("callback re-query failed")
		s.redirectBack(w, r)
		return
	}

	_, _, err = s.intents.ApplyReport(ctx, depositID, report)
	outcome := callbackOutcome(err)
	metrics.IncCallback(outcome)
	switch outcome {
	case "unknown_intent":
		l.Warn().Msg("callback for unknown deposit")
	case "stale":
		l.Debug().Msg("stale callback ignored")
	case "requery_failed":
		l.Error().Err(err).Msg("callback apply failed")
	}
	s.redirectBack(w, r)
}

// callbackOutcome maps an ApplyReport error to the callback counter label.
// A rejected transition means the intent settled before the redirect landed;
// that is expected traffic, not an applied signal.
func callbackOutcome(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, domain.ErrUnknownIntent):
		return "unknown_intent"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "stale"
	default:
		return "requery_failed"
	}
}

// redirectBack sends the browser to the checkout return URL with the
// callback query stripped.
func (s *Server) redirectBack(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.returnURL, http.StatusSeeOther)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, _ := SessionFromContext(ctx)
	depositID := chi.URLParam(r, "depositID")

	intent, err := s.intents.Get(ctx, depositID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownIntent) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Failed to load payment", http.StatusInternalServerError)
		return
	}
	if intent.SessionID != sessionID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := s.gate.Download(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrLocked) {
			http.Error(w, "Payment not completed", http.StatusPaymentRequired)
			return
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("document release failed")
		http.Error(w, "Failed to release document", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"depositId": depositID,
		"status":    "released",
	})
}
