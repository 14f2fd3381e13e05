package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/gateway"
	"github.com/openpayflow/orchestrator/internal/models"
)

// RefundService implements spec.md §4.3: a Refund always has a SUCCEEDED
// parent Payment, and the running sum of its SUCCEEDED siblings never
// exceeds the parent's amount.
type RefundService struct {
	db        *gorm.DB
	merchants *MerchantLookup
	gateways  *gateway.Registry
}

func NewRefundService(db *gorm.DB, merchants *MerchantLookup, gateways *gateway.Registry) *RefundService {
	return &RefundService{db: db, merchants: merchants, gateways: gateways}
}

// CreateRefundInput is the validated shape of POST /v1/refunds' body.
type CreateRefundInput struct {
	PaymentID      string
	Amount         int64 // 0 means "full remaining amount"
	Reason         string
	MerchantAPIKey string
}

// CreateRefund is the entry point for POST /v1/refunds.
func (s *RefundService) CreateRefund(ctx context.Context, in CreateRefundInput) (*models.Refund, error) {
	merchant, err := s.merchants.Lookup(ctx, HashAPIKey(in.MerchantAPIKey))
	if err != nil {
		if errors.Is(err, ErrMerchantNotFound) {
			return nil, faults.Auth("API key not recognized")
		}
		return nil, faults.Internal("merchant lookup failed", err)
	}

	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Refunds").
		Where("id = ? AND merchant_id = ?", in.PaymentID, merchant.ID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.Validation("PAYMENT_NOT_FOUND", "no payment %q found for this merchant", in.PaymentID)
		}
		return nil, faults.Internal("failed to load payment", err)
	}

	if payment.Status != models.PaymentSucceeded {
		return nil, faults.Domain("REFUND_REQUIRES_SUCCEEDED_PAYMENT", "payment %q is %s, not SUCCEEDED", payment.ID, payment.Status)
	}

	var alreadyRefunded int64
	for _, r := range payment.Refunds {
		if r.Status == models.RefundSucceeded {
			alreadyRefunded += r.Amount
		}
	}
	remaining := payment.Amount - alreadyRefunded

	amount := in.Amount
	if amount == 0 {
		amount = remaining
	}
	if amount <= 0 || amount > remaining {
		return nil, faults.Domain("REFUND_AMOUNT_EXCEEDS_PAYMENT", "refund amount %d exceeds remaining refundable amount %d", amount, remaining)
	}

	refund := models.Refund{
		PaymentID: payment.ID,
		Amount:    amount,
		Reason:    in.Reason,
		Status:    models.RefundPending,
	}
	if err := s.db.WithContext(ctx).Create(&refund).Error; err != nil {
		return nil, faults.Internal("failed to create refund", err)
	}

	if err := s.db.WithContext(ctx).Model(&refund).Update("status", models.RefundProcessing).Error; err != nil {
		return nil, faults.Internal("failed to transition refund to processing", err)
	}
	refund.Status = models.RefundProcessing

	port, err := s.gateways.Get(string(payment.Gateway))
	if err != nil {
		return nil, faults.Internal("gateway not available", err)
	}

	result, gwErr := port.RefundPayment(ctx, gateway.RefundRequest{
		ProviderPaymentID: payment.ProviderPaymentID,
		Amount:            amount,
		Reason:            in.Reason,
	})
	if gwErr != nil {
		return s.settleRefundFailure(ctx, &refund, gwErr)
	}

	refund.Status = mapGatewayStatusToRefund(result.Status)
	refund.ProviderRefundID = result.ProviderRefundID

	outboxPayload, err := buildRefundCreatedPayload(&refund, payment.ID)
	if err != nil {
		return nil, faults.Internal("failed to build outbox payload", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Refund{}).Where("id = ?", refund.ID).Updates(map[string]interface{}{
			"status":             refund.Status,
			"provider_refund_id": refund.ProviderRefundID,
			"updated_at":         time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		outbox := models.Outbox{
			AggregateType: "refund",
			AggregateID:   refund.ID,
			EventType:     models.EventRefundCreated,
			Payload:       outboxPayload,
		}
		return tx.Create(&outbox).Error
	})
	if err != nil {
		return nil, faults.Internal("failed to persist gateway result", err)
	}

	return &refund, nil
}

func (s *RefundService) settleRefundFailure(ctx context.Context, refund *models.Refund, gwErr error) (*models.Refund, error) {
	var gf *faults.GatewayFault
	errors.As(gwErr, &gf)

	refund.Status = models.RefundFailed

	outboxPayload, buildErr := buildRefundCreatedPayload(refund, refund.PaymentID)
	if buildErr != nil {
		return nil, faults.Internal("failed to build outbox payload", buildErr)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Refund{}).Where("id = ?", refund.ID).Updates(map[string]interface{}{
			"status":     models.RefundFailed,
			"updated_at": time.Now().UTC(),
		}).Error; err != nil {
			return err
		}
		outbox := models.Outbox{
			AggregateType: "refund",
			AggregateID:   refund.ID,
			EventType:     models.EventRefundCreated,
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
	return nil, faults.Internal("gateway refund call failed", gwErr)
}

func mapGatewayStatusToRefund(s gateway.Status) models.RefundStatus {
	switch s {
	case gateway.StatusSucceeded:
		return models.RefundSucceeded
	case gateway.StatusProcessing, gateway.StatusPending:
		return models.RefundProcessing
	default:
		return models.RefundFailed
	}
}

type refundSnapshot struct {
	ID               string `json:"id"`
	PaymentID        string `json:"paymentId"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ProviderRefundID string `json:"providerRefundId,omitempty"`
}

type refundCreatedPayload struct {
	RefundSnapshot refundSnapshot `json:"refundSnapshot"`
	CorrelationID  string         `json:"correlationId"`
}

func buildRefundCreatedPayload(r *models.Refund, correlationID string) (json.RawMessage, error) {
	payload := refundCreatedPayload{
		RefundSnapshot: refundSnapshot{
			ID:               r.ID,
			PaymentID:        r.PaymentID,
			Amount:           r.Amount,
			Status:           string(r.Status),
			ProviderRefundID: r.ProviderRefundID,
		},
		CorrelationID: correlationID,
	}
	return json.Marshal(payload)
}
