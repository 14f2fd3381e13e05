package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openpayflow/orchestrator/internal/events"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/queue"
	"github.com/openpayflow/orchestrator/internal/services"
)

// unreachableQueue wraps a WorkQueue pointed at an address nothing is
// listening on. drainOnce fires Push from a detached goroutine after its
// claiming transaction commits and only logs a failure, so a
// connection-refused error here never fails a test — it just exercises
// the same code path a real worker's network hiccup would.
func unreachableQueue() *queue.WorkQueue {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
	})
	return queue.NewWorkQueue(client)
}

func TestDrainOnceFansOutToSubscribedActiveEndpoints(t *testing.T) {
	db, err := services.InitSQLiteDB()
	if err != nil {
		t.Fatalf("InitSQLiteDB failed: %v", err)
	}

	subscribed := models.WebhookEndpoint{
		URL:      "http://subscribed.invalid",
		Secret:   "whsec_a",
		Events:   models.EventTypeList{models.EventPaymentCreated},
		IsActive: true,
	}
	unsubscribed := models.WebhookEndpoint{
		URL:      "http://unsubscribed.invalid",
		Secret:   "whsec_b",
		Events:   models.EventTypeList{},
		IsActive: true,
	}
	inactive := models.WebhookEndpoint{
		URL:      "http://inactive.invalid",
		Secret:   "whsec_c",
		Events:   models.EventTypeList{models.EventPaymentCreated},
		IsActive: false,
	}
	for _, ep := range []*models.WebhookEndpoint{&subscribed, &unsubscribed, &inactive} {
		if err := db.Create(ep).Error; err != nil {
			t.Fatalf("failed to seed endpoint: %v", err)
		}
	}

	payload, _ := json.Marshal(map[string]string{"paymentId": "pay_1"})
	row := models.Outbox{
		AggregateType: "payment",
		AggregateID:   "pay_1",
		EventType:     models.EventPaymentCreated,
		Payload:       payload,
		Processed:     false,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed outbox row: %v", err)
	}

	drainer := NewDrainer(db, unreachableQueue(), events.NewHub())
	if err := drainer.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce returned error: %v", err)
	}

	var reloaded models.Outbox
	if err := db.First(&reloaded, "id = ?", row.ID).Error; err != nil {
		t.Fatalf("failed to reload outbox row: %v", err)
	}
	if !reloaded.Processed {
		t.Error("outbox row was not marked processed")
	}

	var createdEvents []models.Event
	db.Find(&createdEvents)
	if len(createdEvents) != 1 {
		t.Fatalf("events created = %d; want 1", len(createdEvents))
	}

	var deliveries []models.WebhookDelivery
	db.Find(&deliveries)
	if len(deliveries) != 1 {
		t.Fatalf("deliveries created = %d; want 1 (only the subscribed, active endpoint)", len(deliveries))
	}
	if deliveries[0].EndpointID != subscribed.ID {
		t.Errorf("delivery EndpointID = %q; want the subscribed endpoint %q", deliveries[0].EndpointID, subscribed.ID)
	}
	if deliveries[0].Status != models.DeliveryPending {
		t.Errorf("delivery Status = %q; want %q", deliveries[0].Status, models.DeliveryPending)
	}
}

func TestDrainOnceSkipsAlreadyProcessedRows(t *testing.T) {
	db, err := services.InitSQLiteDB()
	if err != nil {
		t.Fatalf("InitSQLiteDB failed: %v", err)
	}

	row := models.Outbox{
		AggregateType: "payment",
		AggregateID:   "pay_2",
		EventType:     models.EventPaymentCreated,
		Payload:       json.RawMessage(`{}`),
		Processed:     true,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("failed to seed outbox row: %v", err)
	}

	drainer := NewDrainer(db, unreachableQueue(), events.NewHub())
	if err := drainer.drainOnce(context.Background()); err != nil {
		t.Fatalf("drainOnce returned error: %v", err)
	}

	var count int64
	db.Model(&models.Event{}).Count(&count)
	if count != 0 {
		t.Errorf("events created = %d; want 0, already-processed row must be skipped", count)
	}
}
