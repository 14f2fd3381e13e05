package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openpayflow/orchestrator/internal/faults"
)

// MockConfig tunes the Mock adapter's simulated behavior.
type MockConfig struct {
	SuccessRate      float64 // in [0,1]
	AverageLatencyMs int
	EnableChaos      bool
	ChaosRate        float64 // in [0,1]
}

type mockPaymentRecord struct {
	ID       string
	Amount   int64
	Currency string
	Status   Status
}

type mockRefundRecord struct {
	ID                string
	ProviderPaymentID string
	Amount            int64
	Status            Status
}

// Mock is the only adapter variant with observable state: it keeps its
// own in-memory payments and refunds so tests can assert on gateway-side
// behavior without a real provider.
type Mock struct {
	cfg MockConfig

	mu       sync.Mutex
	payments map[string]*mockPaymentRecord
	refunds  map[string]*mockRefundRecord

	rng *rand.Rand
}

// NewMock constructs a Mock adapter with the given tunables.
func NewMock(cfg MockConfig) *Mock {
	return &Mock{
		cfg:      cfg,
		payments: make(map[string]*mockPaymentRecord),
		refunds:  make(map[string]*mockRefundRecord),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) simulateLatency() {
	if m.cfg.AverageLatencyMs <= 0 {
		return
	}
	latency := (0.5 + m.rng.Float64()) * float64(m.cfg.AverageLatencyMs)
	time.Sleep(time.Duration(latency) * time.Millisecond)
}

func (m *Mock) maybeChaos() error {
	if !m.cfg.EnableChaos {
		return nil
	}
	if m.rng.Float64() >= m.cfg.ChaosRate {
		return nil
	}
	codes := []int{500, 502, 503, 504}
	status := codes[m.rng.Intn(len(codes))]
	return &faults.GatewayFault{
		Message:        "mock gateway chaos injection",
		ProviderCode:   "mock_chaos",
		HTTPStatusCode: status,
	}
}

func (m *Mock) rollSuccess() bool {
	return m.rng.Float64() < m.cfg.SuccessRate
}

func (m *Mock) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error) {
	m.simulateLatency()
	if err := m.maybeChaos(); err != nil {
		return nil, err
	}

	id := "mock_pay_" + uuid.NewString()
	status := StatusFailed
	if m.rollSuccess() {
		status = StatusSucceeded
	}

	m.mu.Lock()
	m.payments[id] = &mockPaymentRecord{ID: id, Amount: req.Amount, Currency: req.Currency, Status: status}
	m.mu.Unlock()

	raw, _ := json.Marshal(map[string]interface{}{
		"id":       id,
		"amount":   req.Amount,
		"currency": req.Currency,
		"status":   status,
	})

	return &CreatePaymentResult{
		ProviderPaymentID: id,
		Status:            status,
		Raw:               raw,
	}, nil
}

func (m *Mock) RefundPayment(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	m.simulateLatency()
	if err := m.maybeChaos(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	_, exists := m.payments[req.ProviderPaymentID]
	m.mu.Unlock()
	if !exists {
		return nil, &faults.GatewayFault{Message: fmt.Sprintf("unknown providerPaymentId %q", req.ProviderPaymentID), ProviderCode: "not_found", HTTPStatusCode: 404}
	}

	id := "mock_ref_" + uuid.NewString()
	status := StatusFailed
	if m.rollSuccess() {
		status = StatusSucceeded
	}

	m.mu.Lock()
	m.refunds[id] = &mockRefundRecord{ID: id, ProviderPaymentID: req.ProviderPaymentID, Amount: req.Amount, Status: status}
	m.mu.Unlock()

	raw, _ := json.Marshal(map[string]interface{}{
		"id":     id,
		"amount": req.Amount,
		"status": status,
	})

	return &RefundResult{ProviderRefundID: id, Status: status, Raw: raw}, nil
}

func (m *Mock) GetPaymentStatus(ctx context.Context, providerPaymentID string) (*StatusResult, error) {
	m.simulateLatency()
	if err := m.maybeChaos(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	rec, exists := m.payments[providerPaymentID]
	m.mu.Unlock()
	if !exists {
		return nil, &faults.GatewayFault{Message: fmt.Sprintf("unknown providerPaymentId %q", providerPaymentID), ProviderCode: "not_found", HTTPStatusCode: 404}
	}

	raw, _ := json.Marshal(rec)
	return &StatusResult{Status: rec.Status, Amount: rec.Amount, Currency: rec.Currency, Raw: raw}, nil
}

func (m *Mock) HealthCheck(ctx context.Context) bool { return true }
