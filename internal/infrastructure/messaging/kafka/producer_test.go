package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/domain/order"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeWriter) snapshot() ([]kafka.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]kafka.Message(nil), f.msgs...), f.closed
}

func TestProducer_FlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 8, logger.Discard())

	require.NoError(t, p.Publish([]byte("1"), []byte("a")))
	require.NoError(t, p.Publish([]byte("2"), []byte("b")))
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()

	msgs, closed := w.snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", string(msgs[0].Value))
	assert.Equal(t, "b", string(msgs[1].Value))
	assert.True(t, closed)

	assert.ErrorIs(t, p.Publish(nil, []byte("late")), ErrClosed)
	p.Close()
}

func TestProducer_ContextCancelDrains(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())

	p.Start(ctx)
	require.NoError(t, p.Publish(nil, []byte("x")))
	cancel()

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop")
	}
	msgs, closed := w.snapshot()
	assert.Len(t, msgs, 1)
	assert.True(t, closed)
}

func TestProducer_BufferFull(t *testing.T) {
	p := newProducer(&fakeWriter{}, 1, logger.Discard())
	require.NoError(t, p.Publish(nil, []byte("1")))
	assert.ErrorIs(t, p.Publish(nil, []byte("2")), ErrBufferFull)
}

func TestOrderPublisher_Encodes(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, 4, logger.Discard())
	pub := NewOrderPublisher(p)

	env := order.Envelope{
		EventID:       "evt-1",
		EventType:     order.EventStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Producer:      "lpg-test",
		CorrelationID: "42",
		Payload:       json.RawMessage(`{"order_id":42,"from":"PENDING","to":"PAID"}`),
	}
	require.NoError(t, pub.Publish(context.Background(), env))
	p.Start(context.Background())
	p.Close()
	p.WaitClosed()

	msgs, _ := w.snapshot()
	require.Len(t, msgs, 1)
	m := msgs[0]
	assert.Equal(t, "42", string(m.Key))
	assert.Equal(t, []kafka.Header{
		{Key: HeaderEventType, Value: []byte(order.EventStatusChanged)},
		{Key: HeaderEventVersion, Value: []byte("1")},
	}, m.Headers)

	var decoded order.Envelope
	require.NoError(t, json.Unmarshal(m.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
	assert.JSONEq(t, string(env.Payload), string(decoded.Payload))
}
