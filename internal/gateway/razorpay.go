package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Razorpay is a thin REST adapter over the Orders/Payments API, built the
// same way as Stripe above — no razorpay-go SDK exists in the corpus.
//
// Razorpay orders never self-resolve out of requires_action: spec.md §9
// flags this as an open question (a background reconciliation/settlement
// poll would be needed for production use) and explicitly leaves it
// unimplemented here.
type Razorpay struct {
	client *restClient
}

func NewRazorpay(keyID, keySecret string) *Razorpay {
	client := newRESTClient("https://api.razorpay.com/v1", 30*time.Second, func(r *http.Request) {
		r.SetBasicAuth(keyID, keySecret)
	})
	return &Razorpay{client: client}
}

func (r *Razorpay) Name() string { return "razorpay" }

func mapRazorpayStatus(status string) Status {
	switch status {
	case "captured", "paid":
		return StatusSucceeded
	case "authorized", "created":
		return StatusRequiresAction
	case "pending":
		return StatusProcessing
	default:
		return StatusFailed
	}
}

func (r *Razorpay) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	payload := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"notes":    req.Metadata,
	}

	raw, _, err := r.client.do(ctx, "POST", "/orders", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode razorpay response: %w", err)
	}

	// An order is always requires_action until the customer completes
	// checkout and a separate payment webhook/poll resolves it — the
	// reconciliation job spec.md §9 names as out of scope here.
	return &CreatePaymentResult{
		ProviderPaymentID: parsed.ID,
		Status:            StatusRequiresAction,
		Raw:               raw,
	}, nil
}

func (r *Razorpay) RefundPayment(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]interface{}{}
	if req.Amount > 0 {
		payload["amount"] = req.Amount
	}
	if req.Reason != "" {
		payload["notes"] = map[string]string{"reason": req.Reason}
	}

	raw, _, err := r.client.do(ctx, "POST", "/payments/"+req.ProviderPaymentID+"/refund", payload)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode razorpay response: %w", err)
	}

	status := StatusFailed
	switch parsed.Status {
	case "processed":
		status = StatusSucceeded
	case "pending":
		status = StatusPending
	}

	return &RefundResult{ProviderRefundID: parsed.ID, Status: status, Raw: raw}, nil
}

func (r *Razorpay) GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error) {
	raw, _, err := r.client.do(ctx, "GET", "/orders/"+providerPaymentID, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode razorpay response: %w", err)
	}

	return &StatusResult{Status: mapRazorpayStatus(parsed.Status), Amount: parsed.Amount, Currency: parsed.Currency, Raw: raw}, nil
}
