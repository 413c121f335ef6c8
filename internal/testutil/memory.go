package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// MemoryStore is an in-memory event log and snapshot table. Set the Err
// fields to make the matching method fail.
type MemoryStore struct {
	mu        sync.Mutex
	events    []event.Record
	seen      map[string]bool
	snapshots []event.SnapshotRecord

	AppendErr   error
	ReadErr     error
	SnapshotErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: map[string]bool{}}
}

// AppendEvent stores rec unless an event with the same id is already
// present.
func (m *MemoryStore) AppendEvent(_ context.Context, rec event.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	if m.seen[rec.ID] {
		return nil
	}
	m.seen[rec.ID] = true
	m.events = append(m.events, rec)
	return nil
}

// AppendEvents stores every record not already present, or none of them
// when AppendErr is set.
func (m *MemoryStore) AppendEvents(_ context.Context, recs []event.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	for _, rec := range recs {
		if m.seen[rec.ID] {
			continue
		}
		m.seen[rec.ID] = true
		m.events = append(m.events, rec)
	}
	return nil
}

// AppendAll encodes and appends events. It panics on any error.
func (m *MemoryStore) AppendAll(events ...event.Event) {
	for _, e := range events {
		rec, err := e.Record()
		if err != nil {
			panic(err)
		}
		if err := m.AppendEvent(context.Background(), rec); err != nil {
			panic(err)
		}
	}
}

// ReadAllEvents returns the records in insertion order.
func (m *MemoryStore) ReadAllEvents(context.Context) ([]event.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return slices.Clone(m.events), nil
}

// ReadLatestSnapshot returns the snapshot with the greatest timestamp, the
// most recently written one on ties, or nil.
func (m *MemoryStore) ReadLatestSnapshot(context.Context) (*event.SnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var latest *event.SnapshotRecord
	for i := range m.snapshots {
		s := m.snapshots[i]
		if latest == nil || document.CompareTime(s.Timestamp, latest.Timestamp) >= 0 {
			latest = &s
		}
	}
	return latest, nil
}

func (m *MemoryStore) WriteSnapshot(_ context.Context, doc *document.Document, timestamp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SnapshotErr != nil {
		return m.SnapshotErr
	}
	data, err := doc.Encode()
	if err != nil {
		return err
	}
	m.snapshots = append(m.snapshots, event.SnapshotRecord{Doc: string(data), Timestamp: timestamp})
	return nil
}

// PutRawSnapshot stores a snapshot record as is.
func (m *MemoryStore) PutRawSnapshot(rec event.SnapshotRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, rec)
}

// EventCount returns the number of stored events.
func (m *MemoryStore) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// SnapshotCount returns the number of stored snapshots.
func (m *MemoryStore) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}
