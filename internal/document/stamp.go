package document

import (
	"maps"
	"strings"
	"time"
)

// Kind names an entity collection.
type Kind string

const (
	KindOrganization  Kind = "organization"
	KindAccount       Kind = "account"
	KindContact       Kind = "contact"
	KindNote          Kind = "note"
	KindCalendarEvent Kind = "calendarEvent"
	KindCode          Kind = "code"
	KindEntityLink    Kind = "entityLink"
	KindInteraction   Kind = "interaction"
	KindAudit         Kind = "audit"
)

// Kinds lists every entity kind in a fixed order.
func Kinds() []Kind {
	return []Kind{
		KindOrganization, KindAccount, KindContact, KindNote, KindCalendarEvent,
		KindCode, KindEntityLink, KindInteraction, KindAudit,
	}
}

// Stamp is the logical time of a write: the event timestamp, with the event
// id breaking ties.
type Stamp struct {
	At    string `json:"at"`
	Event string `json:"event"`
}

// CompareTime orders RFC 3339 timestamps by the instant they denote, so
// different spellings of one instant compare equal. Strings that do not
// parse fall back to byte order.
func CompareTime(a, b string) int {
	// Same width and both UTC: byte order is time order.
	if len(a) == len(b) && strings.HasSuffix(a, "Z") && strings.HasSuffix(b, "Z") {
		return strings.Compare(a, b)
	}
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Compare(tb)
	}
	return strings.Compare(a, b)
}

// LaterTime returns whichever of a and b is later.
func LaterTime(a, b string) string {
	if CompareTime(b, a) > 0 {
		return b
	}
	return a
}

// Compare orders stamps by (At, Event).
func (s Stamp) Compare(o Stamp) int {
	if c := CompareTime(s.At, o.At); c != 0 {
		return c
	}
	return strings.Compare(s.Event, o.Event)
}

func (s Stamp) IsZero() bool { return s.At == "" && s.Event == "" }

func maxStamp(a, b Stamp) Stamp {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}

// Clock tracks when an entity was created and when each field was last
// written. Fields absent from the map were last written at creation.
type Clock struct {
	Created Stamp            `json:"created"`
	Fields  map[string]Stamp `json:"fields,omitempty"`
}

func NewClock(created Stamp) Clock {
	return Clock{Created: created}
}

// Field returns the stamp of the last write to the named field.
func (c Clock) Field(name string) Stamp {
	if s, ok := c.Fields[name]; ok {
		return s
	}
	return c.Created
}

// Touch returns a copy of c with the given fields stamped at s.
func (c Clock) Touch(s Stamp, fields ...string) Clock {
	out := Clock{Created: c.Created, Fields: maps.Clone(c.Fields)}
	if out.Fields == nil && len(fields) > 0 {
		out.Fields = make(map[string]Stamp, len(fields))
	}
	for _, f := range fields {
		out.Fields[f] = s
	}
	return out
}

// Latest returns the most recent stamp recorded by the clock.
func (c Clock) Latest() Stamp {
	latest := c.Created
	for _, s := range c.Fields {
		latest = maxStamp(latest, s)
	}
	return latest
}
