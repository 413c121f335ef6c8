package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, "", clock.Current())

	assert.Equal(t, "2024-01-01T09:00:00Z", clock.Next())
	assert.Equal(t, "2024-01-01T09:01:00Z", clock.Next())
	assert.Equal(t, "2024-01-01T09:01:00Z", clock.Current())

	clock.Reset()
	assert.Equal(t, "2024-01-01T09:00:00Z", clock.Next())
}

func TestDeterministicClock_ConcurrentNextIsUnique(t *testing.T) {
	clock := NewDeterministicClock()
	seen := make(chan string, 100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- clock.Next()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[string]bool{}
	for ts := range seen {
		unique[ts] = true
	}
	assert.Len(t, unique, 100)
}

func TestEventBuilder(t *testing.T) {
	b := NewEventBuilder("")
	first := b.Event("n1", &event.NoteCreatedPayload{Body: "x"})
	second := b.At("2023-06-01T00:00:00Z", "n1", &event.NoteDeletedPayload{})

	assert.Equal(t, "e0001", first.ID)
	assert.Equal(t, event.NoteCreated, first.Type)
	assert.Equal(t, "test-device", first.DeviceID)
	assert.Equal(t, "e0002", second.ID)
	assert.Equal(t, "2023-06-01T00:00:00Z", second.Timestamp)
	assert.NoError(t, first.Validate())
}
