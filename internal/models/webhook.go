package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventTypeList is a []EventType stored as a JSON array column, following
// the teacher's use of a serializer tag for schema-flexible columns
// (ScheduledTask.Arguments used gorm:"serializer:json" the same way).
type EventTypeList []EventType

// WebhookEndpoint is a merchant-owned subscription target.
type WebhookEndpoint struct {
	ID         string        `gorm:"primaryKey;type:varchar(64)" json:"id"`
	MerchantID string        `gorm:"type:varchar(64);index" json:"merchantId"`
	URL        string        `gorm:"type:text" json:"url"`
	Secret     string        `gorm:"type:varchar(255)" json:"-"`
	Events     EventTypeList `gorm:"serializer:json" json:"events"`
	IsActive   bool          `gorm:"index" json:"isActive"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deletedAt,omitempty"`
}

func (w *WebhookEndpoint) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

// Subscribes reports whether the endpoint wants delivery of t.
func (w *WebhookEndpoint) Subscribes(t EventType) bool {
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// DeliveryStatus is the lifecycle of one WebhookDelivery.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
	DeliveryAbandoned DeliveryStatus = "ABANDONED"
)

// MaxAttempts is the hard cap on WebhookDelivery.AttemptCount.
const MaxAttempts = 10

// WebhookDelivery is one logical attempt series pushing one Event to one
// WebhookEndpoint. DELIVERED and ABANDONED are terminal.
type WebhookDelivery struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	EndpointID    string         `gorm:"type:varchar(64);index" json:"endpointId"`
	EventID       string         `gorm:"type:varchar(64);index" json:"eventId"`
	Status        DeliveryStatus `gorm:"type:varchar(20);index:idx_delivery_retry" json:"status"`
	AttemptCount  int            `json:"attemptCount"`
	LastError     string         `gorm:"type:text" json:"lastError,omitempty"`
	NextRetryAt   *time.Time     `gorm:"index:idx_delivery_retry" json:"nextRetryAt,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (d *WebhookDelivery) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
