package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the first instant a DeterministicClock reports.
var DefaultEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// DeterministicClock hands out strictly increasing event timestamps, one
// minute apart, starting at DefaultEpoch.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	ticks int
}

func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new timestamp.
// The first call returns DefaultEpoch.
func (c *DeterministicClock) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := format(c.ticks)
	c.ticks++
	return ts
}

// Current returns the most recent timestamp handed out, or "" before the
// first call to Next.
func (c *DeterministicClock) Current() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticks == 0 {
		return ""
	}
	return format(c.ticks - 1)
}

// Reset rewinds the clock so the next call returns DefaultEpoch again.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}

func format(ticks int) string {
	return DefaultEpoch.Add(time.Duration(ticks) * time.Minute).Format(time.RFC3339)
}
