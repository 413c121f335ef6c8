package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

// Event is an immutable domain event. Timestamp is an ISO-8601 string and
// the logical ordering key; ID breaks ties.
type Event struct {
	ID        string
	Type      Type
	EntityID  string
	Payload   Payload
	Timestamp string
	DeviceID  string
}

// NewID returns a fresh time-ordered event id.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// New builds an event for payload with a fresh id.
func New(entityID string, p Payload, timestamp, deviceID string) Event {
	return Event{
		ID:        NewID(),
		Type:      p.EventType(),
		EntityID:  entityID,
		Payload:   p,
		Timestamp: timestamp,
		DeviceID:  deviceID,
	}
}

// TimestampLayout is the layout of timestamps this process generates.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// SnapshotLayout is the fixed-width layout snapshot tags are stored in, so
// stores can pick the latest snapshot by byte order.
const SnapshotLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp formats t the way events record time: UTC, millisecond
// precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SnapshotTimestamp rewrites ts in SnapshotLayout. The instant is kept
// exactly; a string that does not parse is returned unchanged.
func SnapshotTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format(SnapshotLayout)
}

// PayloadOf extracts the payload as T, accepting either T or *T.
func PayloadOf[T Payload](e Event) (T, error) {
	if p, ok := e.Payload.(T); ok {
		return p, nil
	}
	if p, ok := any(e.Payload).(*T); ok && p != nil {
		return *p, nil
	}
	var zero T
	return zero, errs.Validation("payload %T does not match event type %s", e.Payload, e.Type).WithEvent(e.ID, string(e.Type))
}

// Stamp returns the logical write time of the event.
func (e Event) Stamp() document.Stamp {
	return document.Stamp{At: e.Timestamp, Event: e.ID}
}

// Refs returns every entity the event mentions in its payload.
func (e Event) Refs() []Ref {
	if e.Payload == nil {
		return nil
	}
	return e.Payload.Refs()
}

// Validate checks the structural rules every event must satisfy before it
// is folded: a known type, an id, a timestamp, an entity id and a payload
// of the matching variant that encodes canonically.
func (e Event) Validate() error {
	if !e.Type.Known() {
		return errs.UnknownEventType(string(e.Type)).WithEvent(e.ID, string(e.Type))
	}
	fail := func(format string, args ...any) error {
		return errs.Validation(format, args...).WithEvent(e.ID, string(e.Type))
	}
	if e.ID == "" {
		return fail("event id is required")
	}
	if e.Timestamp == "" {
		return fail("timestamp is required")
	}
	if _, err := time.Parse(time.RFC3339Nano, e.Timestamp); err != nil {
		return fail("timestamp %q is not ISO-8601", e.Timestamp)
	}
	if e.EntityID == "" {
		return fail("entityId is required")
	}
	if e.Payload == nil {
		return fail("payload is required")
	}
	if e.Payload.EventType() != e.Type {
		return fail("payload %T does not match event type", e.Payload)
	}
	if _, err := ir.MarshalCanonical(e.Payload); err != nil {
		return fail("payload is not serializable: %v", err)
	}
	return nil
}

// Compare orders events by (Timestamp, ID). Timestamps compare by instant,
// so offsets and mixed precision sort chronologically.
func Compare(a, b Event) int {
	if c := document.CompareTime(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// Less reports whether a sorts before b.
func Less(a, b Event) bool { return Compare(a, b) < 0 }

// Sort orders events by (Timestamp, ID) in place.
func Sort(events []Event) {
	slices.SortStableFunc(events, Compare)
}

// Record is the persisted shape of an event. Payload holds canonical JSON.
type Record struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	EntityID  *string `json:"entityId"`
	Payload   string  `json:"payload"`
	Timestamp string  `json:"timestamp"`
	DeviceID  string  `json:"deviceId"`
}

// Record converts the event to its persisted shape.
func (e Event) Record() (Record, error) {
	data, err := ir.MarshalCanonical(e.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("encode payload of %s: %w", e.ID, err)
	}
	rec := Record{
		ID:        e.ID,
		Type:      string(e.Type),
		Payload:   string(data),
		Timestamp: e.Timestamp,
		DeviceID:  e.DeviceID,
	}
	if e.EntityID != "" {
		id := e.EntityID
		rec.EntityID = &id
	}
	return rec, nil
}

// FromRecord decodes a persisted record into an event.
func FromRecord(rec Record) (Event, error) {
	t := Type(rec.Type)
	p, err := DecodePayload(t, []byte(rec.Payload))
	if err != nil {
		return Event{}, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	e := Event{
		ID:        rec.ID,
		Type:      t,
		Payload:   p,
		Timestamp: rec.Timestamp,
		DeviceID:  rec.DeviceID,
	}
	if rec.EntityID != nil {
		e.EntityID = *rec.EntityID
	}
	return e, nil
}

// DecodePayload decodes JSON into the payload variant for t.
func DecodePayload(t Type, data []byte) (Payload, error) {
	p, ok := newPayload(t)
	if !ok {
		return nil, errs.UnknownEventType(string(t))
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errs.Validation("decode %s payload: %v", t, err)
	}
	return p, nil
}

// SnapshotRecord is the persisted shape of a snapshot: an encoded document
// and the timestamp of the last event folded into it.
type SnapshotRecord struct {
	Doc       string `json:"doc"`
	Timestamp string `json:"timestamp"`
}
