package services

import (
	"context"
	"testing"

	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/gateway"
	"github.com/openpayflow/orchestrator/internal/models"
)

func newTestRefundService(t *testing.T) (*RefundService, *PaymentService, *models.Merchant) {
	t.Helper()
	paymentSvc, db, merchant := newTestPaymentService(t, false)

	cache := newFakeCache()
	merchants := NewMerchantLookup(db, cache)
	// Share the payment service's registry so refunds reach the same Mock
	// that recorded the payment.
	registry := paymentSvc.gateways
	registry.Register(gateway.NewMock(gateway.MockConfig{SuccessRate: 1.0}))

	return NewRefundService(db, merchants, registry), paymentSvc, merchant
}

func TestCreateRefundHappyPath(t *testing.T) {
	refundSvc, paymentSvc, _ := newTestRefundService(t)

	payment, err := paymentSvc.CreatePayment(context.Background(), baseInput(), "idem_refund_1")
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	refund, err := refundSvc.CreateRefund(context.Background(), CreateRefundInput{
		PaymentID:      payment.ID,
		Amount:         500,
		Reason:         "requested_by_customer",
		MerchantAPIKey: "sk_test_acme",
	})
	if err != nil {
		t.Fatalf("CreateRefund failed: %v", err)
	}
	if refund.Status != models.RefundSucceeded {
		t.Errorf("Status = %q; want %q", refund.Status, models.RefundSucceeded)
	}
}

func TestCreateRefundRejectsAmountExceedingPayment(t *testing.T) {
	refundSvc, paymentSvc, _ := newTestRefundService(t)

	payment, err := paymentSvc.CreatePayment(context.Background(), baseInput(), "idem_refund_2")
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	_, err = refundSvc.CreateRefund(context.Background(), CreateRefundInput{
		PaymentID:      payment.ID,
		Amount:         payment.Amount + 1,
		MerchantAPIKey: "sk_test_acme",
	})
	if err == nil {
		t.Fatal("expected REFUND_AMOUNT_EXCEEDS_PAYMENT, got nil error")
	}
	df, ok := err.(*faults.DomainFault)
	if !ok {
		t.Fatalf("expected *faults.DomainFault, got %T: %v", err, err)
	}
	if df.Code != "REFUND_AMOUNT_EXCEEDS_PAYMENT" {
		t.Errorf("Code = %q; want REFUND_AMOUNT_EXCEEDS_PAYMENT", df.Code)
	}
}

func TestCreateRefundRejectsUnknownPayment(t *testing.T) {
	refundSvc, _, _ := newTestRefundService(t)

	_, err := refundSvc.CreateRefund(context.Background(), CreateRefundInput{
		PaymentID:      "does-not-exist",
		Amount:         100,
		MerchantAPIKey: "sk_test_acme",
	})
	if err == nil {
		t.Fatal("expected PAYMENT_NOT_FOUND, got nil error")
	}
	vf, ok := err.(*faults.ValidationFault)
	if !ok {
		t.Fatalf("expected *faults.ValidationFault, got %T: %v", err, err)
	}
	if vf.Code != "PAYMENT_NOT_FOUND" {
		t.Errorf("Code = %q; want PAYMENT_NOT_FOUND", vf.Code)
	}
}

func TestCreateRefundRejectsNonSucceededPayment(t *testing.T) {
	paymentSvc, db, _ := newTestPaymentService(t, false)

	cache := newFakeCache()
	merchants := NewMerchantLookup(db, cache)
	registry := paymentSvc.gateways
	registry.Register(gateway.NewMock(gateway.MockConfig{SuccessRate: 0.0}))
	refundSvc := NewRefundService(db, merchants, registry)

	payment, err := paymentSvc.CreatePayment(context.Background(), baseInput(), "idem_refund_failed")
	if err != nil {
		t.Fatalf("CreatePayment returned unexpected error: %v", err)
	}
	if payment.Status != models.PaymentFailed {
		t.Fatalf("test setup: Status = %q; want FAILED so the refund rule is actually exercised", payment.Status)
	}

	_, err = refundSvc.CreateRefund(context.Background(), CreateRefundInput{
		PaymentID:      payment.ID,
		Amount:         100,
		MerchantAPIKey: "sk_test_acme",
	})
	if err == nil {
		t.Fatal("expected REFUND_REQUIRES_SUCCEEDED_PAYMENT, got nil error")
	}
	df, ok := err.(*faults.DomainFault)
	if !ok {
		t.Fatalf("expected *faults.DomainFault, got %T: %v", err, err)
	}
	if df.Code != "REFUND_REQUIRES_SUCCEEDED_PAYMENT" {
		t.Errorf("Code = %q; want REFUND_REQUIRES_SUCCEEDED_PAYMENT", df.Code)
	}
}
