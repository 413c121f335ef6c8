package testutil

import (
	"fmt"
	"sync"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// EventBuilder creates events with sequential ids ("e0001", "e0002", ...)
// and clock-driven timestamps, so fixtures sort the way they are written.
type EventBuilder struct {
	mu     sync.Mutex
	clock  *DeterministicClock
	seq    int
	device string
}

func NewEventBuilder(device string) *EventBuilder {
	if device == "" {
		device = "test-device"
	}
	return &EventBuilder{clock: NewDeterministicClock(), device: device}
}

// Event builds the next event for entityID.
func (b *EventBuilder) Event(entityID string, p event.Payload) event.Event {
	return b.At(b.clock.Next(), entityID, p)
}

// At builds an event with an explicit timestamp.
func (b *EventBuilder) At(timestamp, entityID string, p event.Payload) event.Event {
	b.mu.Lock()
	b.seq++
	id := fmt.Sprintf("e%04d", b.seq)
	b.mu.Unlock()

	return event.Event{
		ID:        id,
		Type:      p.EventType(),
		EntityID:  entityID,
		Payload:   p,
		Timestamp: timestamp,
		DeviceID:  b.device,
	}
}

// Ptr returns a pointer to v, for optional payload fields.
func Ptr[T any](v T) *T { return &v }
