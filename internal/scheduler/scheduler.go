// Package scheduler implements the webhook delivery scheduler (spec.md
// §4.5): a work-queue consumer for freshly-drained deliveries and a
// retry-sweep ticker for deliveries whose NextRetryAt has come due, both
// funneling into one Process call per delivery.
package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/openpayflow/orchestrator/internal/deadletter"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/queue"
	"github.com/openpayflow/orchestrator/internal/webhook"
)

const (
	sweepInterval  = 30 * time.Second
	sweepBatchSize = 50
	popTimeout     = 5 * time.Second
	requestTimeout = 30 * time.Second
)

// Scheduler delivers webhook events and retries failures with backoff
// until MaxAttempts, at which point the delivery is abandoned and
// dead-lettered.
type Scheduler struct {
	db         *gorm.DB
	queue      *queue.WorkQueue
	deadLetter deadletter.Publisher
	httpClient *http.Client
	rng        *rand.Rand
}

func NewScheduler(db *gorm.DB, q *queue.WorkQueue, dl deadletter.Publisher) *Scheduler {
	return &Scheduler{
		db:         db,
		queue:      q,
		deadLetter: dl,
		httpClient: &http.Client{Timeout: requestTimeout},
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run blocks until ctx is cancelled, running the work-queue consumer and
// the retry sweep concurrently.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() {
		s.consumeQueue(ctx)
		done <- struct{}{}
	}()
	go func() {
		s.sweepRetries(ctx)
		done <- struct{}{}
	}()
	<-done
	<-done
}

func (s *Scheduler) consumeQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		id, ok, err := s.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("scheduler: queue pop failed: %v", err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.Process(ctx, id); err != nil {
			log.Printf("scheduler: process delivery %s failed: %v", id, err)
		}
	}
}

func (s *Scheduler) sweepRetries(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Scheduler) sweepOnce(ctx context.Context) {
	var due []models.WebhookDelivery
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ? AND attempt_count < ?",
			models.DeliveryFailed, now, webhook.MaxAttempts).
		Limit(sweepBatchSize).
		Find(&due).Error
	if err != nil {
		log.Printf("scheduler: retry sweep query failed: %v", err)
		return
	}
	for _, d := range due {
		if err := s.Process(ctx, d.ID); err != nil {
			log.Printf("scheduler: process delivery %s failed: %v", d.ID, err)
		}
	}
}

// Process drives one delivery attempt: check the attempt cap, claim,
// build+sign payload, POST, classify the result, and either mark
// DELIVERED or schedule the next retry (or abandon at MaxAttempts). Safe
// to call concurrently for the same delivery id — the optimistic claim
// update means only one caller wins per attemptCount.
func (s *Scheduler) Process(ctx context.Context, deliveryID string) error {
	var delivery models.WebhookDelivery
	if err := s.db.WithContext(ctx).First(&delivery, "id = ?", deliveryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if delivery.Status == models.DeliveryDelivered || delivery.Status == models.DeliveryAbandoned {
		return nil
	}

	var endpoint models.WebhookEndpoint
	if err := s.db.WithContext(ctx).First(&endpoint, "id = ?", delivery.EndpointID).Error; err != nil {
		return err
	}
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", delivery.EventID).Error; err != nil {
		return err
	}

	if delivery.AttemptCount >= webhook.MaxAttempts {
		return s.abandon(ctx, &delivery, &endpoint, &event, "max attempts reached")
	}

	claimedAttempt := delivery.AttemptCount + 1
	res := s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).
		Where("id = ? AND attempt_count = ?", delivery.ID, delivery.AttemptCount).
		Update("attempt_count", claimedAttempt)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Another caller (work-queue consumer vs retry sweep racing the
		// same delivery) already claimed this attempt.
		return nil
	}
	delivery.AttemptCount = claimedAttempt

	if !endpoint.IsActive {
		return s.abandon(ctx, &delivery, &endpoint, &event, "endpoint deactivated")
	}

	body, err := webhook.BuildPayload(&event)
	if err != nil {
		return err
	}
	signature := webhook.SignatureHeader(endpoint.Secret, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return s.fail(ctx, &delivery, &endpoint, &event, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhook.UserAgent)
	req.Header.Set(webhook.HeaderSignature, signature)
	req.Header.Set(webhook.HeaderEventType, string(event.Type))
	req.Header.Set(webhook.HeaderDeliveryID, delivery.ID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return s.fail(ctx, &delivery, &endpoint, &event, err.Error())
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Updates(map[string]interface{}{
			"status":        models.DeliveryDelivered,
			"next_retry_at": nil,
			"updated_at":    time.Now().UTC(),
		}).Error
	}

	lastError := httpStatusError(resp.StatusCode)
	if delivery.AttemptCount >= webhook.MaxAttempts {
		return s.abandon(ctx, &delivery, &endpoint, &event, lastError)
	}

	nextRetryAt := webhook.NextRetryAt(time.Now().UTC(), delivery.AttemptCount, s.rng)
	return s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Updates(map[string]interface{}{
		"status":        models.DeliveryFailed,
		"last_error":    lastError,
		"next_retry_at": nextRetryAt,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (s *Scheduler) fail(ctx context.Context, delivery *models.WebhookDelivery, endpoint *models.WebhookEndpoint, event *models.Event, lastError string) error {
	if delivery.AttemptCount >= webhook.MaxAttempts {
		return s.abandon(ctx, delivery, endpoint, event, lastError)
	}
	nextRetryAt := webhook.NextRetryAt(time.Now().UTC(), delivery.AttemptCount, s.rng)
	return s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Updates(map[string]interface{}{
		"status":        models.DeliveryFailed,
		"last_error":    lastError,
		"next_retry_at": nextRetryAt,
		"updated_at":    time.Now().UTC(),
	}).Error
}

// abandon settles a delivery to ABANDONED and appends a dead-letter
// record, per spec.md §4.5 step 7.
func (s *Scheduler) abandon(ctx context.Context, delivery *models.WebhookDelivery, endpoint *models.WebhookEndpoint, event *models.Event, lastError string) error {
	err := s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Updates(map[string]interface{}{
		"status":        models.DeliveryAbandoned,
		"last_error":    lastError,
		"next_retry_at": nil,
		"updated_at":    time.Now().UTC(),
	}).Error
	if err != nil {
		return err
	}

	if s.deadLetter != nil {
		rec := deadletter.NewAbandonedRecord(delivery.ID, endpoint.ID, event.ID, delivery.AttemptCount, lastError, time.Now().UTC())
		if err := s.deadLetter.Publish(ctx, rec); err != nil {
			log.Printf("scheduler: failed to publish dead-letter record for delivery %s: %v", delivery.ID, err)
		}
	}
	return nil
}

func httpStatusError(code int) string {
	return fmt.Sprintf("received HTTP %d %s", code, http.StatusText(code))
}
