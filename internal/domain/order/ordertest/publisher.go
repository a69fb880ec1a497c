// Package ordertest provides test doubles for the order package.
package ordertest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/your-org/lpg-storefront/internal/domain/order"
)

// RecordingPublisher keeps every published envelope in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []order.Envelope
	Err    error
}

// Publish implements order.Publisher.
func (p *RecordingPublisher) Publish(_ context.Context, env order.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.events = append(p.events, env)
	return nil
}

// Events returns a copy of what was published so far.
func (p *RecordingPublisher) Events() []order.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]order.Envelope, len(p.events))
	copy(out, p.events)
	return out
}

// OfType filters events by type.
func (p *RecordingPublisher) OfType(eventType string) []order.Envelope {
	var out []order.Envelope
	for _, e := range p.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// StatusChanges decodes every order.status_changed payload.
func (p *RecordingPublisher) StatusChanges() []order.StatusChangedPayload {
	var out []order.StatusChangedPayload
	for _, e := range p.OfType(order.EventStatusChanged) {
		var payload order.StatusChangedPayload
		if err := json.Unmarshal(e.Payload, &payload); err == nil {
			out = append(out, payload)
		}
	}
	return out
}
