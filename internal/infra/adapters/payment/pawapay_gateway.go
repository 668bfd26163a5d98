package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resume-checkout/internal/domain"
	"resume-checkout/internal/domain/model"
	"resume-checkout/internal/domain/ports/adapter"
)

// PawaPayGateway implements adapter.PaymentGateway against the pawaPay-style
// deposits API used by the checkout aggregator. It holds no state beyond the
// HTTP client; every call is a plain request/response round trip.
type PawaPayGateway struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewPawaPayGateway(baseURL, apiToken string, timeout time.Duration) *PawaPayGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PawaPayGateway{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *PawaPayGateway) Name() string { return "pawapay" }

type createDepositBody struct {
	Plan     string `json:"plan"`
	Amount   int64  `json:"amount"`
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

type createDepositResponse struct {
	DepositID string `json:"depositId"`
	Status    string `json:"status"`
}

type statusResponse struct {
	Status        string `json:"status"`
	PawapayStatus string `json:"pawapayStatus"`
	FailureReason string `json:"failureReason"`
}

// errorResponse mirrors the aggregator's rejection body. The human-readable
// reason lives in one of three places depending on which layer rejected the
// request; first present wins.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Details struct {
		ErrorMessage string `json:"errorMessage"`
	} `json:"details"`
}

func (e errorResponse) reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Error != "" {
		return e.Error
	}
	return e.Details.ErrorMessage
}

func (g *PawaPayGateway) CreateDeposit(ctx context.Context, req adapter.CreateDepositRequest) (adapter.CreateDepositResult, error) {
	body, err := json.Marshal(createDepositBody{
		Plan:     string(req.Plan),
		Amount:   req.Amount,
		Phone:    req.Phone,
		Provider: req.Provider,
		Country:  req.Country,
		Currency: req.Currency,
	})
	if err != nil {
		return adapter.CreateDepositResult{}, fmt.Errorf("marshal create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/payments/create", bytes.NewReader(body))
	if err != nil {
		return adapter.CreateDepositResult{}, fmt.Errorf("build create request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return adapter.CreateDepositResult{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return adapter.CreateDepositResult{}, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return adapter.CreateDepositResult{}, fmt.Errorf("%w: gateway returned %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		reason := er.reason()
		if reason == "" {
			reason = fmt.Sprintf("gateway returned %d", resp.StatusCode)
		}
		return adapter.CreateDepositResult{}, fmt.Errorf("%w: %s", domain.ErrGatewayRejected, reason)
	}

	var cr createDepositResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return adapter.CreateDepositResult{}, fmt.Errorf("unmarshal create response: %w, body: %s", err, string(raw))
	}
	if cr.DepositID == "" {
		return adapter.CreateDepositResult{}, domain.ErrInvalidDepositID
	}

	status, _ := mapProviderStatus(cr.Status)
	if status == "" {
		status = model.IntentStatusPending
	}
	return adapter.CreateDepositResult{
		DepositID:      cr.DepositID,
		Status:         status,
		ProviderStatus: cr.Status,
	}, nil
}

func (g *PawaPayGateway) QueryStatus(ctx context.Context, depositID string) (model.StatusReport, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/payments/status/"+depositID, nil)
	if err != nil {
		return model.StatusReport{}, fmt.Errorf("build status request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return model.StatusReport{}, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	// A non-2xx status answer carries no new information: let the poller
	// spend an attempt and try again instead of aborting the loop.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.StatusReport{}, nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.StatusReport{}, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}
	var sr statusResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return model.StatusReport{}, fmt.Errorf("unmarshal status response: %w, body: %s", err, string(raw))
	}

	providerStatus := sr.PawapayStatus
	if providerStatus == "" {
		providerStatus = sr.Status
	}
	status, confirmed := mapProviderStatus(sr.Status)
	if status == "" {
		status, confirmed = mapProviderStatus(sr.PawapayStatus)
	}
	// A queried "pending" means the provider has acknowledged the deposit.
	if status == model.IntentStatusPending {
		status = model.IntentStatusProcessing
	}
	return model.StatusReport{
		Status:         status,
		ProviderStatus: providerStatus,
		FailureReason:  sr.FailureReason,
		Confirmed:      confirmed,
	}, nil
}

func (g *PawaPayGateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiToken)
	}
}

// mapProviderStatus folds the provider's status vocabulary onto the canonical
// enum. Confirmed is true only for the provider's explicit COMPLETED code —
// the one signal allowed to override an earlier failed/timed_out outcome.
func mapProviderStatus(s string) (model.IntentStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "COMPLETED":
		return model.IntentStatusCompleted, true
	case "FAILED", "REJECTED", "CANCELLED", "EXPIRED":
		return model.IntentStatusFailed, false
	case "ACCEPTED", "SUBMITTED", "ENQUEUED", "PROCESSING", "IN_PROGRESS":
		return model.IntentStatusProcessing, false
	case "PENDING", "CREATED":
		return model.IntentStatusPending, false
	}
	return "", false
}
