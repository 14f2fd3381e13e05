package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is the lifecycle state of a Payment. Monotone except
// PROCESSING -> REQUIRES_ACTION -> {SUCCEEDED, FAILED, CANCELLED}.
type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "PENDING"
	PaymentProcessing     PaymentStatus = "PROCESSING"
	PaymentRequiresAction PaymentStatus = "REQUIRES_ACTION"
	PaymentSucceeded      PaymentStatus = "SUCCEEDED"
	PaymentFailed         PaymentStatus = "FAILED"
	PaymentCancelled      PaymentStatus = "CANCELLED"
)

// IsTerminal reports whether the status can no longer transition.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentCancelled:
		return true
	default:
		return false
	}
}

// Gateway identifies which Gateway Port adapter handles a Payment.
type Gateway string

const (
	GatewayStripe   Gateway = "stripe"
	GatewayRazorpay Gateway = "razorpay"
	GatewayMock     Gateway = "mock"
)

// Payment is the central aggregate: merchant submits, gateway settles,
// attempts and refunds hang off it.
type Payment struct {
	ID                string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MerchantID        string        `gorm:"type:varchar(64);uniqueIndex:idx_payments_merchant_idem" json:"merchantId"`
	Amount            int64         `json:"amount"`
	Currency          string        `gorm:"type:varchar(3)" json:"currency"`
	Status            PaymentStatus `gorm:"type:varchar(20);index" json:"status"`
	Gateway           Gateway       `gorm:"type:varchar(20)" json:"gateway"`
	ProviderPaymentID string        `gorm:"type:varchar(128)" json:"providerPaymentId,omitempty"`
	IdempotencyKey    string        `gorm:"type:varchar(255);uniqueIndex:idx_payments_merchant_idem" json:"-"`
	Metadata          json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`

	Attempts []PaymentAttempt `gorm:"foreignKey:PaymentID" json:"attempts,omitempty"`
	Refunds  []Refund         `gorm:"foreignKey:PaymentID" json:"refunds,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// AttemptStatus mirrors PaymentStatus for the subset relevant to one
// gateway call.
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "PENDING"
	AttemptProcessing AttemptStatus = "PROCESSING"
	AttemptSucceeded  AttemptStatus = "SUCCEEDED"
	AttemptFailed     AttemptStatus = "FAILED"
)

// PaymentAttempt records exactly one gateway invocation for a Payment.
// Dense 1-indexed attemptNo, unique per (paymentId, attemptNo).
type PaymentAttempt struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PaymentID        string          `gorm:"type:varchar(64);uniqueIndex:idx_attempts_payment_no" json:"paymentId"`
	AttemptNo        int             `gorm:"uniqueIndex:idx_attempts_payment_no" json:"attemptNo"`
	Status           AttemptStatus   `gorm:"type:varchar(20)" json:"status"`
	ErrorCode        string          `gorm:"type:varchar(64)" json:"errorCode,omitempty"`
	ErrorMessage     string          `gorm:"type:text" json:"errorMessage,omitempty"`
	ProviderResponse json.RawMessage `gorm:"type:jsonb" json:"providerResponse,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (a *PaymentAttempt) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
