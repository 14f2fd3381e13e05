package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Stripe is a thin REST adapter over the Payment Intents API. No Stripe
// SDK exists anywhere in the retrieved corpus, so this follows the
// teacher's own raw-HTTP-client idiom (see WahaService) rather than
// reaching for an unavailable library.
type Stripe struct {
	client *restClient
}

// NewStripe builds a Stripe adapter. It never fails: a missing API key is
// rejected earlier by config.Load, and a disabled adapter is simply not
// registered, so a request naming it fails at registry lookup.
func NewStripe(apiKey string) *Stripe {
	client := newRESTClient("https://api.stripe.com/v1", 30*time.Second, func(r *http.Request) {
		r.SetBasicAuth(apiKey, "")
	})
	return &Stripe{client: client}
}

func (s *Stripe) Name() string { return "stripe" }

func mapStripeStatus(status string) Status {
	switch status {
	case "succeeded":
		return StatusSucceeded
	case "processing":
		return StatusProcessing
	case "requires_action", "requires_source_action", "requires_confirmation":
		return StatusRequiresAction
	default:
		return StatusFailed
	}
}

func (s *Stripe) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.Amount, 10))
	form.Set("currency", req.Currency)
	form.Set("confirm", "true")
	if req.CustomerID != "" {
		form.Set("customer", req.CustomerID)
	}
	if req.MethodID != "" {
		form.Set("payment_method", req.MethodID)
	}

	raw, _, err := s.client.do(ctx, "POST", "/payment_intents?"+form.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode stripe response: %w", err)
	}

	return &CreatePaymentResult{
		ProviderPaymentID: parsed.ID,
		Status:            mapStripeStatus(parsed.Status),
		ClientSecret:      parsed.ClientSecret,
		Raw:               raw,
	}, nil
}

func (s *Stripe) RefundPayment(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	form := url.Values{}
	form.Set("payment_intent", req.ProviderPaymentID)
	if req.Amount > 0 {
		form.Set("amount", strconv.FormatInt(req.Amount, 10))
	}
	if req.Reason != "" {
		form.Set("reason", req.Reason)
	}

	raw, _, err := s.client.do(ctx, "POST", "/refunds?"+form.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode stripe response: %w", err)
	}

	status := StatusFailed
	switch parsed.Status {
	case "succeeded":
		status = StatusSucceeded
	case "pending":
		status = StatusPending
	}

	return &RefundResult{ProviderRefundID: parsed.ID, Status: status, Raw: raw}, nil
}

func (s *Stripe) GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error) {
	raw, _, err := s.client.do(ctx, "GET", "/payment_intents/"+providerPaymentID, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode stripe response: %w", err)
	}

	return &StatusResult{Status: mapStripeStatus(parsed.Status), Amount: parsed.Amount, Currency: parsed.Currency, Raw: raw}, nil
}
