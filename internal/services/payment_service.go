package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/config"
	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/gateway"
	"github.com/openpayflow/orchestrator/internal/models"
)

// PaymentService implements the idempotent payment intake path: spec.md
// §4.2, the core of the reliable event-delivery spine.
type PaymentService struct {
	db        *gorm.DB
	merchants *MerchantLookup
	idemCache *IdempotencyCache
	gateways  *gateway.Registry
	cfg       *config.Config
}

func NewPaymentService(db *gorm.DB, merchants *MerchantLookup, idemCache *IdempotencyCache, gateways *gateway.Registry, cfg *config.Config) *PaymentService {
	return &PaymentService{db: db, merchants: merchants, idemCache: idemCache, gateways: gateways, cfg: cfg}
}

// CreatePaymentInput is the validated shape of POST /v1/payments' body.
type CreatePaymentInput struct {
	Amount         int64
	Currency       string
	Gateway        string
	MerchantAPIKey string
	Metadata       map[string]interface{}
	CustomerID     string
	MethodID       string
}

// HashAPIKey computes the SHA-256 hex digest merchants are looked up by,
// so a raw API key is never stored or logged in plaintext.
func HashAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

func canonicalBodyHash(in CreatePaymentInput) string {
	canon := struct {
		Amount   int64                  `json:"amount"`
		Currency string                 `json:"currency"`
		Gateway  string                 `json:"gateway"`
		Metadata map[string]interface{} `json:"metadata"`
	}{in.Amount, in.Currency, in.Gateway, in.Metadata}
	data, _ := json.Marshal(canon)
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			if r < 'a' || r > 'z' {
				return false
			}
		}
	}
	return true
}

// CreatePayment is the entry point for POST /v1/payments.
func (s *PaymentService) CreatePayment(ctx context.Context, in CreatePaymentInput, idempotencyKey string) (*models.Payment, error) {
	if idempotencyKey == "" {
		return nil, faults.Validation("MISSING_IDEMPOTENCY_KEY", "Idempotency-Key header is required")
	}
	if in.Amount <= 0 {
		return nil, faults.Validation("INVALID_AMOUNT", "amount must be greater than 0")
	}
	if !validCurrency(in.Currency) {
		return nil, faults.Validation("INVALID_CURRENCY", "currency must be a 3-letter ISO-4217 code")
	}
	switch models.Gateway(in.Gateway) {
	case models.GatewayStripe, models.GatewayRazorpay, models.GatewayMock:
	default:
		return nil, faults.Validation("INVALID_GATEWAY", "gateway must be one of stripe, razorpay, mock")
	}

	merchant, err := s.merchants.Lookup(ctx, HashAPIKey(in.MerchantAPIKey))
	if err != nil {
		if errors.Is(err, ErrMerchantNotFound) {
			return nil, faults.Auth("API key not recognized")
		}
		return nil, faults.Internal("merchant lookup failed", err)
	}

	in.Currency = strings.ToUpper(in.Currency)
	in.Metadata = SanitizeMetadata(in.Metadata)
	bodyHash := canonicalBodyHash(in)

	// Idempotency check: a cache/store hit returns the prior payment
	// unchanged, regardless of whether the current body matches — unless
	// IDEMPOTENCY_STRICT_MODE is enabled and the cached entry carries a body
	// hash, in which case a body mismatch is a DomainFault (SPEC_FULL.md
	// §11). Entries rebuilt from the store after a cache miss carry no hash,
	// so no conflict check is made for them.
	entry, err := s.idemCache.Lookup(ctx, merchant.ID, idempotencyKey)
	if err == nil {
		if s.cfg.IdempotencyStrictMode && entry.BodyHash != "" && entry.BodyHash != bodyHash {
			return nil, faults.Domain("IDEMPOTENCY_CONFLICT", "idempotency key %q was already used with a different request body", idempotencyKey)
		}
		var existing models.Payment
		if err := s.db.WithContext(ctx).Preload("Attempts").Preload("Refunds").First(&existing, "id = ?", entry.PaymentID).Error; err != nil {
			return nil, faults.Internal("failed to load prior payment", err)
		}
		return &existing, nil
	}
	if !errors.Is(err, ErrNoPriorPayment) {
		return nil, faults.Internal("idempotency lookup failed", err)
	}

	payment := models.Payment{
		MerchantID:     merchant.ID,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Status:         models.PaymentPending,
		Gateway:        models.Gateway(in.Gateway),
		IdempotencyKey: idempotencyKey,
	}
	if in.Metadata != nil {
		metaBytes, _ := json.Marshal(in.Metadata)
		payment.Metadata = metaBytes
	}
	attempt := models.PaymentAttempt{
		AttemptNo: 1,
		Status:    models.AttemptPending,
	}

	// Step 3: create Payment(PENDING), Attempt#1(PENDING) in one
	// transaction. A concurrent intake racing the same (merchantId,
	// idempotencyKey) loses the unique-constraint race and reads the
	// winner's row back out.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		attempt.PaymentID = payment.ID
		return tx.Create(&attempt).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			var existing models.Payment
			if loadErr := s.db.WithContext(ctx).Preload("Attempts").Preload("Refunds").
				Where("merchant_id = ? AND idempotency_key = ?", merchant.ID, idempotencyKey).
				First(&existing).Error; loadErr == nil {
				_ = s.idemCache.Put(ctx, merchant.ID, idempotencyKey, IdempotencyEntry{PaymentID: existing.ID, BodyHash: bodyHash})
				return &existing, nil
			}
		}
		return nil, faults.Internal("failed to create payment", err)
	}

	if err := s.idemCache.Put(ctx, merchant.ID, idempotencyKey, IdempotencyEntry{PaymentID: payment.ID, BodyHash: bodyHash}); err != nil {
		// Cache population failure is not fatal: a concurrent replay will
		// simply fall through to the store, which still has the row.
	}

	// Step 4: transition Payment->PROCESSING, Attempt->PROCESSING.
	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", payment.ID).
		Updates(map[string]interface{}{"status": models.PaymentProcessing, "updated_at": now}).Error; err != nil {
		return nil, faults.Internal("failed to transition payment to processing", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).Where("id = ?", attempt.ID).
		Updates(map[string]interface{}{"status": models.AttemptProcessing, "updated_at": now}).Error; err != nil {
		return nil, faults.Internal("failed to transition attempt to processing", err)
	}
	payment.Status = models.PaymentProcessing
	attempt.Status = models.AttemptProcessing

	// Step 5: invoke the gateway.
	port, err := s.gateways.Get(in.Gateway)
	if err != nil {
		return nil, faults.Internal("gateway not available", err)
	}

	result, gwErr := port.CreatePayment(ctx, gateway.CreatePaymentRequest{
		Amount:     in.Amount,
		Currency:   strings.ToLower(in.Currency),
		Metadata:   in.Metadata,
		CustomerID: in.CustomerID,
		MethodID:   in.MethodID,
	})

	if gwErr != nil {
		return s.settleGatewayFailure(ctx, &payment, &attempt, gwErr)
	}

	payment.Status = mapGatewayStatusToPayment(result.Status)
	attempt.Status = mapGatewayStatusToAttempt(result.Status)
	payment.ProviderPaymentID = result.ProviderPaymentID
	attempt.ProviderResponse = result.Raw

	correlationID := idempotencyKey + ":" + payment.ID
	outboxPayload, err := buildPaymentCreatedPayload(&payment, correlationID)
	if err != nil {
		return nil, faults.Internal("failed to build outbox payload", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"status":              payment.Status,
			"provider_payment_id": payment.ProviderPaymentID,
			"updated_at":          time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PaymentAttempt{}).Where("id = ?", attempt.ID).Updates(map[string]interface{}{
			"status":            attempt.Status,
			"provider_response": attempt.ProviderResponse,
			"updated_at":        time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		outbox := models.Outbox{
			AggregateType: "payment",
			AggregateID:   payment.ID,
			EventType:     models.EventPaymentCreated,
			Payload:       outboxPayload,
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return nil, faults.Internal("failed to persist gateway result", err)
	}

	return &payment, nil
}

// settleGatewayFailure implements spec.md §4.2 step 7: on GatewayFault,
// set Payment/Attempt to FAILED, still append the payment.created outbox
// row (it describes the creation attempt, not its success), and re-raise
// the fault.
func (s *PaymentService) settleGatewayFailure(ctx context.Context, payment *models.Payment, attempt *models.PaymentAttempt, gwErr error) (*models.Payment, error) {
	var gf *faults.GatewayFault
	errorCode := "GATEWAY_ERROR"
	errorMessage := gwErr.Error()
	if errors.As(gwErr, &gf) {
		errorCode = gf.FaultCode()
		errorMessage = gf.Message
	}

	payment.Status = models.PaymentFailed
	attempt.Status = models.AttemptFailed

	correlationID := payment.IdempotencyKey + ":" + payment.ID
	outboxPayload, buildErr := buildPaymentCreatedPayload(payment, correlationID)
	if buildErr != nil {
		return nil, faults.Internal("failed to build outbox payload", buildErr)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).Where("id = ?", payment.ID).Updates(map[string]interface{}{
			"status":     models.PaymentFailed,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.PaymentAttempt{}).Where("id = ?", attempt.ID).Updates(map[string]interface{}{
			"status":        models.AttemptFailed,
			"error_code":    errorCode,
			"error_message": errorMessage,
			"updated_at":    time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		outbox := models.Outbox{
			AggregateType: "payment",
			AggregateID:   payment.ID,
			EventType:     models.EventPaymentCreated,
			Payload:       outboxPayload,
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return nil, faults.Internal("failed to persist gateway failure", err)
	}

	if gf != nil {
		return nil, &faults.GatewayFault{Message: gf.Message, ProviderCode: gf.ProviderCode, HTTPStatusCode: gf.HTTPStatus(), Cause: gf.Cause}
	}
	return nil, faults.Internal("gateway call failed", gwErr)
}

func mapGatewayStatusToPayment(s gateway.Status) models.PaymentStatus {
	switch s {
	case gateway.StatusSucceeded:
		return models.PaymentSucceeded
	case gateway.StatusProcessing:
		return models.PaymentProcessing
	case gateway.StatusRequiresAction:
		return models.PaymentRequiresAction
	default:
		return models.PaymentFailed
	}
}

func mapGatewayStatusToAttempt(s gateway.Status) models.AttemptStatus {
	switch s {
	case gateway.StatusSucceeded:
		return models.AttemptSucceeded
	case gateway.StatusProcessing, gateway.StatusRequiresAction:
		return models.AttemptProcessing
	default:
		return models.AttemptFailed
	}
}

type paymentSnapshot struct {
	ID                string `json:"id"`
	MerchantID        string `json:"merchantId"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Status            string `json:"status"`
	Gateway           string `json:"gateway"`
	ProviderPaymentID string `json:"providerPaymentId,omitempty"`
}

type paymentCreatedPayload struct {
	PaymentSnapshot paymentSnapshot `json:"paymentSnapshot"`
	CorrelationID   string          `json:"correlationId"`
}

func buildPaymentCreatedPayload(p *models.Payment, correlationID string) (json.RawMessage, error) {
	payload := paymentCreatedPayload{
		PaymentSnapshot: paymentSnapshot{
			ID:                p.ID,
			MerchantID:        p.MerchantID,
			Amount:            p.Amount,
			Currency:          p.Currency,
			Status:            string(p.Status),
			Gateway:           string(p.Gateway),
			ProviderPaymentID: p.ProviderPaymentID,
		},
		CorrelationID: correlationID,
	}
	return json.Marshal(payload)
}

// isUniqueViolation detects the unique-constraint race on
// (merchantId, idempotencyKey) across both Postgres and SQLite error
// shapes, since tests run against SQLite (spec.md §5's idempotency
// guarantee: the loser reads the winner's row).
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
