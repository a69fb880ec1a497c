package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ErrBufferFull is returned when the inbox cannot take another message.
var ErrBufferFull = errors.New("kafka producer buffer full")

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("kafka producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer buffers messages and writes them from a single goroutine so that
// request handlers never wait on the broker.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	log   logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewProducer builds an async writer keyed by message key.
func NewProducer(brokers []string, topic string, buf int, log logrus.FieldLogger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.WithError(err).WithField("count", len(msgs)).Error("kafka write failed")
			}
		},
	}
	return newProducer(w, buf, log.WithFields(logrus.Fields{"component": "kafka-producer", "topic": topic}))
}

func newProducer(w messageWriter, buf int, log logrus.FieldLogger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   log,
	}
}

// Start drains the inbox until Close is called or ctx ends.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.Close()
				p.flush()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

// Publish enqueues a message without blocking.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting messages. Buffered ones are still flushed.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
	})
}

// WaitClosed blocks until the writer has been flushed and closed.
func (p *Producer) WaitClosed() { <-p.done }

func (p *Producer) flush() {
	for m := range p.inbox {
		p.write(m)
	}
	p.closeWriter()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.WithError(err).WithField("key", string(m.Key)).Error("failed to write message")
	}
}

func (p *Producer) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.log.WithError(err).Warn("failed to close kafka writer")
	}
}
