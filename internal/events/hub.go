// Package events implements the additive live event stream
// (SPEC_FULL.md §6.6): an in-process pub/sub hub the Outbox Drainer
// broadcasts newly-drained Events through, and GET /v1/events/stream
// subscribes merchant-scoped websocket connections to. This path is
// explicitly outside every testable property in spec.md §8 — a dropped
// broadcast never affects Delivery state, only a dashboard's liveness.
package events

import (
	"sync"

	"github.com/openpayflow/orchestrator/internal/models"
)

// Notification is what the hub fans out: an Event plus the merchant it
// belongs to, so subscribers can filter.
type Notification struct {
	MerchantID string
	Event      *models.Event
}

// Hub is a best-effort fan-out broadcaster. Notifications to a slow
// subscriber are dropped rather than allowed to backpressure the Drainer.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Notification]string // chan -> merchantID filter
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Notification]string)}
}

// Subscribe registers a new channel scoped to merchantID and returns it
// along with an unsubscribe func.
func (h *Hub) Subscribe(merchantID string) (chan Notification, func()) {
	ch := make(chan Notification, 16)
	h.mu.Lock()
	h.subscribers[ch] = merchantID
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// Broadcast fans n out to every subscriber whose merchant filter matches.
// Never blocks: a full subscriber channel simply misses this notification.
func (h *Hub) Broadcast(n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, merchantID := range h.subscribers {
		if merchantID != n.MerchantID {
			continue
		}
		select {
		case ch <- n:
		default:
		}
	}
}
