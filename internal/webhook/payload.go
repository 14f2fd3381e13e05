package webhook

import (
	"encoding/json"

	"github.com/openpayflow/orchestrator/internal/models"
)

// OutboundPayload is the wire shape sent to a webhook receiver — fixed by
// spec.md §4.5 step 3. Stable field order is not required; the signature
// covers the exact serialized bytes, not a canonical form.
type OutboundPayload struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    json.RawMessage `json:"data"`
}

// BuildPayload serializes the outbound body for one Event delivery.
func BuildPayload(event *models.Event) ([]byte, error) {
	p := OutboundPayload{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: event.CreatedAt.Unix(),
		Data:    event.Payload,
	}
	return json.Marshal(p)
}

// Headers the webhook POST must carry, per spec.md §4.5 step 4.
const (
	HeaderSignature  = "X-OpenPayFlow-Signature"
	HeaderEventType  = "X-OpenPayFlow-Event-Type"
	HeaderDeliveryID = "X-OpenPayFlow-Delivery-Id"
	UserAgent        = "OpenPayFlow/1.0"
)
