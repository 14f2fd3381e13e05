package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox rows are written in the same transaction as the state change they
// describe and later converted into an Event exactly once. processed flips
// false->true exactly once.
type Outbox struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	AggregateType string          `gorm:"type:varchar(32)" json:"aggregateType"`
	AggregateID   string          `gorm:"type:varchar(64);index" json:"aggregateId"`
	EventType     EventType       `gorm:"type:varchar(64)" json:"eventType"`
	Payload       json.RawMessage `gorm:"type:jsonb" json:"payload"`
	Processed     bool            `gorm:"index:idx_outbox_unprocessed,where:processed = false" json:"processed"`
	CreatedAt     time.Time       `gorm:"index" json:"createdAt"`
}

func (o *Outbox) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
