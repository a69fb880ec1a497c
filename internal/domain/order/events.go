// internal/domain/order/events.go
package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderCreated  = "order.created"
	EventStatusChanged = "order.status_changed"
)

// Envelope wraps every order event on the wire
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// CreatedPayload is the body of order.created
type CreatedPayload struct {
	OrderID     uint              `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	UserID      uint              `json:"user_id"`
	Method      FulfillmentMethod `json:"fulfillment_method"`
	Total       string            `json:"total"`
	ItemCount   int               `json:"item_count"`
}

// StatusChangedPayload is the body of order.status_changed
type StatusChangedPayload struct {
	OrderID     uint      `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      uint      `json:"user_id"`
	From        Status    `json:"from"`
	To          Status    `json:"to"`
	ActorID     *uint     `json:"actor_id,omitempty"`
	ActorRole   ActorRole `json:"actor_role"`
	Comment     string    `json:"comment,omitempty"`
}

// Publisher ships events to whoever listens. Implementations must not block
// for long; publishing happens after the transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Envelope) error { return nil }

// PartitionKey keeps all events of one order on the same partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

func newEnvelope(eventType, producer, correlationID string, payload interface{}, at time.Time) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       body,
	}, nil
}
