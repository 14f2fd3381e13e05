// Package housekeeper implements the three periodic reaper jobs spec.md
// §4.6 names: aged processed outbox rows, aged delivered webhook rows,
// and aged events with no non-terminal delivery referencing them.
package housekeeper

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/models"
)

const (
	sweepInterval = 1 * time.Hour
	batchSize     = 500

	outboxRetention   = 7 * 24 * time.Hour
	deliveryRetention = 30 * 24 * time.Hour
	eventRetention    = 90 * 24 * time.Hour
)

// Housekeeper runs the same ticker+select loop shape as the Drainer.
type Housekeeper struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Housekeeper {
	return &Housekeeper{db: db}
}

// Run blocks until ctx is cancelled, sweeping every tick.
func (h *Housekeeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweepOnce(ctx)
		}
	}
}

func (h *Housekeeper) sweepOnce(ctx context.Context) {
	now := time.Now().UTC()

	if n, err := h.reapOutbox(ctx, now); err != nil {
		log.Printf("housekeeper: outbox reap failed: %v", err)
	} else if n > 0 {
		log.Printf("housekeeper: reaped %d processed outbox rows", n)
	}

	if n, err := h.reapDeliveries(ctx, now); err != nil {
		log.Printf("housekeeper: delivery reap failed: %v", err)
	} else if n > 0 {
		log.Printf("housekeeper: reaped %d delivered webhook rows", n)
	}

	if n, err := h.reapEvents(ctx, now); err != nil {
		log.Printf("housekeeper: event reap failed: %v", err)
	} else if n > 0 {
		log.Printf("housekeeper: reaped %d aged events", n)
	}
}

// reapOutbox deletes processed outbox rows older than 7d, in bounded
// batches so a large backlog never holds one long-running delete.
func (h *Housekeeper) reapOutbox(ctx context.Context, now time.Time) (int64, error) {
	return h.deleteInBatches(ctx, &models.Outbox{}, "processed = ? AND created_at < ?", true, now.Add(-outboxRetention))
}

// reapDeliveries deletes DELIVERED webhook_delivery rows older than 30d.
func (h *Housekeeper) reapDeliveries(ctx context.Context, now time.Time) (int64, error) {
	return h.deleteInBatches(ctx, &models.WebhookDelivery{}, "status = ? AND created_at < ?", models.DeliveryDelivered, now.Add(-deliveryRetention))
}

// reapEvents deletes events older than 90d with no non-terminal
// (PENDING or FAILED, i.e. still retryable) delivery referencing them.
func (h *Housekeeper) reapEvents(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for {
		var ids []string
		err := h.db.WithContext(ctx).Model(&models.Event{}).
			Where("created_at < ?", now.Add(-eventRetention)).
			Where("NOT EXISTS (SELECT 1 FROM webhook_deliveries wd WHERE wd.event_id = events.id AND wd.status IN ?)",
				[]models.DeliveryStatus{models.DeliveryPending, models.DeliveryFailed}).
			Limit(batchSize).
			Pluck("id", &ids).Error
		if err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		res := h.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.Event{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < batchSize {
			return total, nil
		}
	}
}

// deleteInBatches repeatedly deletes up to batchSize matching rows until
// none remain, so a large backlog is reaped incrementally.
func (h *Housekeeper) deleteInBatches(ctx context.Context, model interface{}, where string, args ...interface{}) (int64, error) {
	var total int64
	for {
		var ids []string
		if err := h.db.WithContext(ctx).Model(model).Where(where, args...).Limit(batchSize).Pluck("id", &ids).Error; err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}
		res := h.db.WithContext(ctx).Where("id IN ?", ids).Delete(model)
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if len(ids) < batchSize {
			return total, nil
		}
	}
}
