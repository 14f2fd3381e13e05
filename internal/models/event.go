package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event types emitted by the Outbox Drainer. Kept as typed string
// constants rather than a free-form string so webhook endpoint
// subscription lists can be validated against a known set.
const (
	EventPaymentCreated EventType = "payment.created"
	EventRefundCreated  EventType = "refund.created"
)

type EventType string

// KnownEventTypes is the full set WebhookEndpoint.Events may subscribe to.
var KnownEventTypes = map[EventType]bool{
	EventPaymentCreated: true,
	EventRefundCreated:  true,
}

// Event is immutable once created and is shared by every WebhookDelivery
// that references it; it outlives any single delivery.
type Event struct {
	ID        string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Type      EventType       `gorm:"type:varchar(64);index" json:"type"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
