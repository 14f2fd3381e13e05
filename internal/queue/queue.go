// Package queue wraps the two named Redis lists spec.md §6 fixes as the
// persisted queue layout: webhook:delivery (live work) and dead:letter
// (abandoned deliveries). The store is the authority; this queue is a
// hint that accelerates delivery — losing it never loses a delivery,
// since the retry sweep alone rediscovers FAILED+due rows after a crash.
package queue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// WorkQueueKey is the FIFO list of delivery ids newly enqueued by the
	// Outbox Drainer.
	WorkQueueKey = "webhook:delivery"
	// DeadLetterKey is the list of abandoned-delivery dead-letter records.
	DeadLetterKey = "dead:letter"
)

// WorkQueue is a thin FIFO wrapper over a Redis list, used both to push
// newly-drained delivery ids and to block-pop them in the scheduler.
type WorkQueue struct {
	client *redis.Client
}

func NewWorkQueue(client *redis.Client) *WorkQueue {
	return &WorkQueue{client: client}
}

// Push enqueues a delivery id for pickup by the scheduler's work-queue
// consumer.
func (q *WorkQueue) Push(ctx context.Context, deliveryID string) error {
	return q.client.RPush(ctx, WorkQueueKey, deliveryID).Err()
}

// Pop blocks up to timeout for the next delivery id, returning
// (id, true, nil) on success or ("", false, nil) on timeout.
func (q *WorkQueue) Pop(ctx context.Context, timeout time.Duration) (string, bool, error) {
	res, err := q.client.BLPop(ctx, timeout, WorkQueueKey).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	// BLPOP returns [key, value]
	if len(res) < 2 {
		return "", false, nil
	}
	return res[1], true, nil
}
