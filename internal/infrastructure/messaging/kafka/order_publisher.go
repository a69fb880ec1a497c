package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"github.com/your-org/lpg-storefront/internal/domain/order"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// OrderPublisher adapts the producer to order.Publisher.
type OrderPublisher struct {
	producer *Producer
}

// NewOrderPublisher wraps p.
func NewOrderPublisher(p *Producer) *OrderPublisher {
	return &OrderPublisher{producer: p}
}

// Publish implements order.Publisher.
func (o *OrderPublisher) Publish(_ context.Context, env order.Envelope) error {
	key, value, headers, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return o.producer.Publish(key, value, headers...)
}

func encodeEnvelope(env order.Envelope) ([]byte, []byte, []kafka.Header, error) {
	value, err := json.Marshal(env)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode %s event: %w", env.EventType, err)
	}
	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(env.EventType)},
		{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	}
	return order.PartitionKey(env.CorrelationID), value, headers, nil
}
