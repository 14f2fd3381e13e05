package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openpayflow/orchestrator/internal/deadletter"
	"github.com/openpayflow/orchestrator/internal/models"
	"github.com/openpayflow/orchestrator/internal/services"
)

type fakePublisher struct {
	records []deadletter.Record
}

func (f *fakePublisher) Publish(ctx context.Context, rec deadletter.Record) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestScheduler(t *testing.T, dl deadletter.Publisher) (*Scheduler, *models.WebhookDelivery, func(url string)) {
	t.Helper()

	db, err := services.InitSQLiteDB()
	if err != nil {
		t.Fatalf("InitSQLiteDB failed: %v", err)
	}

	event := models.Event{Type: models.EventPaymentCreated, Payload: []byte(`{"paymentSnapshot":{"id":"pay_1"}}`)}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("failed to seed event: %v", err)
	}

	endpoint := models.WebhookEndpoint{
		URL:      "http://placeholder.invalid",
		Secret:   "whsec_testsecret",
		Events:   models.EventTypeList{models.EventPaymentCreated},
		IsActive: true,
	}
	if err := db.Create(&endpoint).Error; err != nil {
		t.Fatalf("failed to seed endpoint: %v", err)
	}

	delivery := models.WebhookDelivery{
		EndpointID: endpoint.ID,
		EventID:    event.ID,
		Status:     models.DeliveryPending,
	}
	if err := db.Create(&delivery).Error; err != nil {
		t.Fatalf("failed to seed delivery: %v", err)
	}

	sched := NewScheduler(db, nil, dl)

	setURL := func(url string) {
		db.Model(&models.WebhookEndpoint{}).Where("id = ?", endpoint.ID).Update("url", url)
	}

	return sched, &delivery, setURL
}

func TestProcessMarksDeliveredOn2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-OpenPayFlow-Signature") == "" {
			t.Error("missing signature header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sched, delivery, setURL := newTestScheduler(t, &fakePublisher{})
	setURL(server.URL)

	if err := sched.Process(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var reloaded models.WebhookDelivery
	sched.db.First(&reloaded, "id = ?", delivery.ID)
	if reloaded.Status != models.DeliveryDelivered {
		t.Errorf("Status = %q; want %q", reloaded.Status, models.DeliveryDelivered)
	}
	if reloaded.AttemptCount != 1 {
		t.Errorf("AttemptCount = %d; want 1", reloaded.AttemptCount)
	}
}

func TestProcessSchedulesRetryOnFailure(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sched, delivery, setURL := newTestScheduler(t, &fakePublisher{})
	setURL(server.URL)

	if err := sched.Process(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var reloaded models.WebhookDelivery
	sched.db.First(&reloaded, "id = ?", delivery.ID)
	if reloaded.Status != models.DeliveryFailed {
		t.Errorf("Status = %q; want %q", reloaded.Status, models.DeliveryFailed)
	}
	if reloaded.NextRetryAt == nil || !reloaded.NextRetryAt.After(time.Now()) {
		t.Errorf("NextRetryAt = %v; want a future time", reloaded.NextRetryAt)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("server hit %d times; want 1", hits)
	}
}

func TestProcessAbandonsAtMaxAttemptsAndDeadLetters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	publisher := &fakePublisher{}
	sched, delivery, setURL := newTestScheduler(t, publisher)
	setURL(server.URL)

	sched.db.Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Update("attempt_count", models.MaxAttempts)

	if err := sched.Process(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var reloaded models.WebhookDelivery
	sched.db.First(&reloaded, "id = ?", delivery.ID)
	if reloaded.Status != models.DeliveryAbandoned {
		t.Errorf("Status = %q; want %q", reloaded.Status, models.DeliveryAbandoned)
	}
	if len(publisher.records) != 1 {
		t.Fatalf("dead-letter records published = %d; want 1", len(publisher.records))
	}
	if publisher.records[0].DeliveryID != delivery.ID {
		t.Errorf("dead-letter DeliveryID = %q; want %q", publisher.records[0].DeliveryID, delivery.ID)
	}
}

func TestProcessIsANoOpForAlreadyTerminalDelivery(t *testing.T) {
	sched, delivery, _ := newTestScheduler(t, &fakePublisher{})
	sched.db.Model(&models.WebhookDelivery{}).Where("id = ?", delivery.ID).Update("status", models.DeliveryDelivered)

	if err := sched.Process(context.Background(), delivery.ID); err != nil {
		t.Fatalf("Process returned error: %v", err)
	}

	var reloaded models.WebhookDelivery
	sched.db.First(&reloaded, "id = ?", delivery.ID)
	if reloaded.AttemptCount != 0 {
		t.Errorf("AttemptCount = %d; want unchanged 0", reloaded.AttemptCount)
	}
}
