// Package deadletter implements the dead-letter log spec.md §4.5 step 7
// requires: a record appended whenever a WebhookDelivery reaches
// ABANDONED. The Redis dead:letter list is the record of truth per
// spec.md §6's persisted layout; SQS is an additive ops-notification
// mirror, never a replacement.
package deadletter

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openpayflow/orchestrator/internal/queue"
)

// Record is the dead-letter entry shape fixed by spec.md §4.5 step 7.
type Record struct {
	Type       string    `json:"type"`
	DeliveryID string    `json:"deliveryId"`
	EndpointID string    `json:"endpointId"`
	EventID    string    `json:"eventId"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewAbandonedRecord builds the record for one abandoned delivery.
func NewAbandonedRecord(deliveryID, endpointID, eventID string, attempts int, lastError string, now time.Time) Record {
	return Record{
		Type:       "webhook_delivery_abandoned",
		DeliveryID: deliveryID,
		EndpointID: endpointID,
		EventID:    eventID,
		Attempts:   attempts,
		LastError:  lastError,
		Timestamp:  now,
	}
}

// Publisher appends a dead-letter record to whatever sink it backs.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// RedisPublisher is the record-of-truth sink: the dead:letter list.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.client.RPush(ctx, queue.DeadLetterKey, data).Err()
}

// FanOut publishes to every configured Publisher, logging (never failing
// the caller) if a non-primary sink errors — losing a secondary mirror
// must never drop the dead-letter record itself.
type FanOut struct {
	primary   Publisher
	secondary []Publisher
}

func NewFanOut(primary Publisher, secondary ...Publisher) *FanOut {
	return &FanOut{primary: primary, secondary: secondary}
}

func (f *FanOut) Publish(ctx context.Context, rec Record) error {
	if err := f.primary.Publish(ctx, rec); err != nil {
		return err
	}
	for _, s := range f.secondary {
		if err := s.Publish(ctx, rec); err != nil {
			log.Printf("deadletter: secondary publisher failed for delivery %s: %v", rec.DeliveryID, err)
		}
	}
	return nil
}
