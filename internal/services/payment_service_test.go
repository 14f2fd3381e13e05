package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/config"
	"github.com/openpayflow/orchestrator/internal/faults"
	"github.com/openpayflow/orchestrator/internal/gateway"
	"github.com/openpayflow/orchestrator/internal/models"
)

func newTestPaymentService(t *testing.T, strictMode bool) (*PaymentService, *gorm.DB, *models.Merchant) {
	t.Helper()

	db, err := InitSQLiteDB()
	if err != nil {
		t.Fatalf("InitSQLiteDB failed: %v", err)
	}

	merchant := models.Merchant{Name: "Acme Co", APIKeyHash: HashAPIKey("sk_test_acme")}
	if err := db.Create(&merchant).Error; err != nil {
		t.Fatalf("failed to seed merchant: %v", err)
	}

	cache := newFakeCache()
	merchants := NewMerchantLookup(db, cache)
	idem := NewIdempotencyCache(db, cache)

	registry := gateway.NewRegistry()
	registry.Register(gateway.NewMock(gateway.MockConfig{SuccessRate: 1.0}))

	cfg := &config.Config{IdempotencyStrictMode: strictMode}

	return NewPaymentService(db, merchants, idem, registry, cfg), db, &merchant
}

func baseInput() CreatePaymentInput {
	return CreatePaymentInput{
		Amount:         1000,
		Currency:       "usd",
		Gateway:        "mock",
		MerchantAPIKey: "sk_test_acme",
		Metadata:       map[string]interface{}{"orderId": "ord_1"},
	}
}

func TestCreatePaymentHappyPath(t *testing.T) {
	svc, _, _ := newTestPaymentService(t, false)

	payment, err := svc.CreatePayment(context.Background(), baseInput(), "idem_1")
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if payment.Status != models.PaymentSucceeded {
		t.Errorf("Status = %q; want %q", payment.Status, models.PaymentSucceeded)
	}
	if payment.Currency != "USD" {
		t.Errorf("Currency = %q; want normalized %q", payment.Currency, "USD")
	}
}

func TestCreatePaymentIsIdempotent(t *testing.T) {
	svc, db, _ := newTestPaymentService(t, false)

	first, err := svc.CreatePayment(context.Background(), baseInput(), "idem_replay")
	if err != nil {
		t.Fatalf("first CreatePayment failed: %v", err)
	}

	second, err := svc.CreatePayment(context.Background(), baseInput(), "idem_replay")
	if err != nil {
		t.Fatalf("replayed CreatePayment failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("replayed request created a new payment: %s != %s", first.ID, second.ID)
	}

	var count int64
	db.Model(&models.Payment{}).Where("idempotency_key = ?", "idem_replay").Count(&count)
	if count != 1 {
		t.Errorf("found %d payments for one idempotency key; want 1", count)
	}
}

func TestCreatePaymentStrictModeRejectsBodyMismatch(t *testing.T) {
	svc, _, _ := newTestPaymentService(t, true)

	if _, err := svc.CreatePayment(context.Background(), baseInput(), "idem_strict"); err != nil {
		t.Fatalf("first CreatePayment failed: %v", err)
	}

	mismatched := baseInput()
	mismatched.Amount = 2000
	_, err := svc.CreatePayment(context.Background(), mismatched, "idem_strict")
	if err == nil {
		t.Fatal("expected IDEMPOTENCY_CONFLICT, got nil error")
	}
	var df *faults.DomainFault
	if !asDomainFault(err, &df) {
		t.Fatalf("expected *faults.DomainFault, got %T: %v", err, err)
	}
	if df.Code != "IDEMPOTENCY_CONFLICT" {
		t.Errorf("Code = %q; want IDEMPOTENCY_CONFLICT", df.Code)
	}
}

func TestCreatePaymentValidation(t *testing.T) {
	svc, _, _ := newTestPaymentService(t, false)

	tests := []struct {
		name  string
		in    CreatePaymentInput
		key   string
		code  string
	}{
		{"zero amount", func() CreatePaymentInput { i := baseInput(); i.Amount = 0; return i }(), "idem_a", "INVALID_AMOUNT"},
		{"bad currency", func() CreatePaymentInput { i := baseInput(); i.Currency = "dollars"; return i }(), "idem_b", "INVALID_CURRENCY"},
		{"bad gateway", func() CreatePaymentInput { i := baseInput(); i.Gateway = "paypal"; return i }(), "idem_c", "INVALID_GATEWAY"},
		{"missing idempotency key", baseInput(), "", "MISSING_IDEMPOTENCY_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePayment(context.Background(), tt.in, tt.key)
			var vf *faults.ValidationFault
			if !asValidationFault(err, &vf) {
				t.Fatalf("expected *faults.ValidationFault, got %T: %v", err, err)
			}
			if vf.Code != tt.code {
				t.Errorf("Code = %q; want %q", vf.Code, tt.code)
			}
		})
	}
}

func TestCreatePaymentUnknownAPIKey(t *testing.T) {
	svc, _, _ := newTestPaymentService(t, false)

	in := baseInput()
	in.MerchantAPIKey = "sk_test_unknown"
	_, err := svc.CreatePayment(context.Background(), in, "idem_auth")
	if _, ok := err.(*faults.AuthFault); !ok {
		t.Fatalf("expected *faults.AuthFault, got %T: %v", err, err)
	}
}

func asDomainFault(err error, out **faults.DomainFault) bool {
	df, ok := err.(*faults.DomainFault)
	if ok {
		*out = df
	}
	return ok
}

func asValidationFault(err error, out **faults.ValidationFault) bool {
	vf, ok := err.(*faults.ValidationFault)
	if ok {
		*out = vf
	}
	return ok
}
