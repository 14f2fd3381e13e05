// Package outbox implements the Outbox Drainer (spec.md §4.4): the
// background loop that converts Outbox rows into immutable Events and
// fans each out into one WebhookDelivery per subscribed active endpoint.
package outbox

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/events"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/queue"
)

const (
	drainInterval = 5 * time.Second
	batchSize     = 100
)

// Drainer runs the ticker + select + context-cancellation loop shape the
// teacher's cmd/worker/main.go uses for its task-polling loop.
type Drainer struct {
	db    *gorm.DB
	queue *queue.WorkQueue
	hub   *events.Hub
}

func NewDrainer(db *gorm.DB, q *queue.WorkQueue, hub *events.Hub) *Drainer {
	return &Drainer{db: db, queue: q, hub: hub}
}

// Run blocks until ctx is cancelled, draining outbox rows every tick.
func (d *Drainer) Run(ctx context.Context) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.drainOnce(ctx); err != nil {
				log.Printf("outbox: drain failed: %v", err)
			}
		}
	}
}

// fanout is what one claimed outbox row produced, carried out of the
// transaction so the drainer can enqueue/broadcast only once it is
// durable.
type fanout struct {
	deliveryIDs []string
	event       models.Event
	merchantID  string
}

// drainOnce claims up to batchSize unprocessed rows and fans each out to
// an Event plus one WebhookDelivery per subscribed active endpoint, all
// inside one transaction. Only after that transaction commits does it
// enqueue the new delivery ids and broadcast to the live event stream —
// a worker must never be able to pop a delivery id, or a subscriber see
// an event, before the row it depends on is durable.
func (d *Drainer) drainOnce(ctx context.Context) error {
	var results []fanout
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := d.claimBatch(tx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			f, err := d.processRow(tx, &row)
			if err != nil {
				return err
			}
			results = append(results, f)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, f := range results {
		for _, id := range f.deliveryIDs {
			id := id
			go func() {
				if err := d.queue.Push(ctx, id); err != nil {
					log.Printf("outbox: failed to enqueue delivery %s: %v", id, err)
				}
			}()
		}
		if d.hub != nil {
			ev := f.event
			d.hub.Broadcast(events.Notification{MerchantID: f.merchantID, Event: &ev})
		}
	}
	return nil
}

// claimBatch selects unprocessed rows oldest-first. On Postgres it locks
// the batch with SELECT ... FOR UPDATE SKIP LOCKED so multiple worker
// instances can drain concurrently without double-processing a row, per
// spec.md §5. SQLite has no row-locking syntax to append — its own
// single-writer lock already serializes drainOnce calls within one
// process, which is the only configuration the sqlite driver is ever
// used in (tests).
func (d *Drainer) claimBatch(tx *gorm.DB) ([]models.Outbox, error) {
	query := "SELECT * FROM outboxes WHERE processed = ? ORDER BY created_at ASC LIMIT ?"
	if tx.Dialector.Name() == "postgres" {
		query += " FOR UPDATE SKIP LOCKED"
	}
	var rows []models.Outbox
	err := tx.Raw(query, false, batchSize).Scan(&rows).Error
	return rows, err
}

// processRow creates the Event and one WebhookDelivery per subscribed
// active endpoint, then marks the outbox row processed, all in the
// caller's transaction, returning what the caller needs to enqueue and
// broadcast once that transaction commits.
func (d *Drainer) processRow(tx *gorm.DB, row *models.Outbox) (fanout, error) {
	event := models.Event{
		Type:    row.EventType,
		Payload: row.Payload,
	}
	if err := tx.Create(&event).Error; err != nil {
		return fanout{}, err
	}

	var endpoints []models.WebhookEndpoint
	if err := tx.Where("is_active = ?", true).Find(&endpoints).Error; err != nil {
		return fanout{}, err
	}

	var deliveryIDs []string
	for _, ep := range endpoints {
		if !ep.Subscribes(row.EventType) {
			continue
		}
		delivery := models.WebhookDelivery{
			EndpointID: ep.ID,
			EventID:    event.ID,
			Status:     models.DeliveryPending,
		}
		if err := tx.Create(&delivery).Error; err != nil {
			return fanout{}, err
		}
		deliveryIDs = append(deliveryIDs, delivery.ID)
	}

	if err := tx.Model(&models.Outbox{}).Where("id = ?", row.ID).Update("processed", true).Error; err != nil {
		return fanout{}, err
	}

	var merchantID string
	if row.AggregateType == "payment" {
		var payment models.Payment
		if err := tx.Select("merchant_id").Where("id = ?", row.AggregateID).First(&payment).Error; err == nil {
			merchantID = payment.MerchantID
		}
	}

	return fanout{deliveryIDs: deliveryIDs, event: event, merchantID: merchantID}, nil
}
