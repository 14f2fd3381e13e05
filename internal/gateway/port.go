// Package gateway defines the capability abstraction every payment
// provider adapter implements (spec.md §4.1) — the only outward
// integration point of the orchestrator.
package gateway

import (
	"context"
	"encoding/json"
)

// Status is the provider-reported outcome of a gateway call, independent
// of how the orchestrator maps it onto Payment/Refund status.
type Status string

const (
	StatusSucceeded     Status = "succeeded"
	StatusProcessing    Status = "processing"
	StatusRequiresAction Status = "requires_action"
	StatusFailed        Status = "failed"
	StatusPending       Status = "pending" // refund-only
)

// CreatePaymentRequest carries everything an adapter needs to open a
// payment with the provider.
type CreatePaymentRequest struct {
	Amount     int64
	Currency   string // lower-cased, as adapters require
	Metadata   map[string]interface{}
	CustomerID string
	MethodID   string
}

// CreatePaymentResult is the adapter's normalized response.
type CreatePaymentResult struct {
	ProviderPaymentID string
	Status            Status
	ClientSecret      string
	NextAction        map[string]interface{}
	Raw               json.RawMessage
}

// RefundRequest carries everything an adapter needs to refund a payment.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64 // 0 means "full remaining amount"
	Reason            string
	Metadata          map[string]interface{}
}

// RefundResult is the adapter's normalized refund response.
type RefundResult struct {
	ProviderRefundID string
	Status           Status
	Raw              json.RawMessage
}

// StatusResult is the adapter's normalized response to a status poll.
type StatusResult struct {
	Status   Status
	Amount   int64
	Currency string
	Metadata map[string]interface{}
	Raw      json.RawMessage
}

// WebhookEvent is what a provider-specific verifyWebhook returns on a
// valid signature.
type WebhookEvent struct {
	Type    string
	Payload json.RawMessage
}

// Port is the capability set required of every adapter. Adapters are
// stateless across calls and may be constructed once per process.
type Port interface {
	Name() string
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*RefundResult, error)
	GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error)
}

// VerifyWebhook is implemented by adapters that can authenticate inbound
// provider webhooks (optional capability per spec.md §4.1).
type VerifyWebhook interface {
	VerifyWebhook(payload []byte, signature, secret string) (*WebhookEvent, error)
}

// HealthChecker is implemented by adapters that can self-report liveness
// (optional capability per spec.md §4.1), consulted by GET /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}
