package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RefundStatus mirrors the settle states a Refund can reach.
type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundSucceeded  RefundStatus = "SUCCEEDED"
	RefundFailed     RefundStatus = "FAILED"
)

// Refund always has a SUCCEEDED parent Payment at create time, and the
// running sum of its SUCCEEDED siblings never exceeds Payment.Amount.
type Refund struct {
	ID               string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	PaymentID        string       `gorm:"type:varchar(64);index" json:"paymentId"`
	Amount           int64        `json:"amount"`
	Status           RefundStatus `gorm:"type:varchar(20);index" json:"status"`
	Reason           string       `gorm:"type:varchar(255)" json:"reason,omitempty"`
	ProviderRefundID string       `gorm:"type:varchar(128)" json:"providerRefundId,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

func (r *Refund) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
