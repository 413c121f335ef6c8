// Package timeline projects the event log and entity links into one
// chronological view of a single entity. Build is pure and cheap enough to
// run on every read.
package timeline

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// ItemKind tags a timeline item.
type ItemKind string

const (
	ItemEvent         ItemKind = "event"
	ItemNote          ItemKind = "note"
	ItemCalendarEvent ItemKind = "calendarEvent"
)

// Item is one entry of a timeline. Exactly one of Event, Note and
// CalendarEvent is set, matching Kind.
type Item struct {
	Kind      ItemKind `json:"kind"`
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`

	Event         *event.Event            `json:"-"`
	EventType     event.Type              `json:"eventType,omitempty"`
	Note          *document.Note          `json:"note,omitempty"`
	CalendarEvent *document.CalendarEvent `json:"calendarEvent,omitempty"`

	// LinkID is the entity link that brought the item in, if any.
	LinkID string `json:"linkId,omitempty"`

	// Legacy marks a calendar item materialized from an unmigrated
	// interaction.
	Legacy bool `json:"legacy,omitempty"`
}

// Build returns the timeline of (kind, id): matching events, linked notes
// and calendar events, and the calendar event itself when kind is
// calendarEvent. Items are ordered by timestamp, then id.
func Build(doc *document.Document, events []event.Event, kind document.Kind, id string) []Item {
	var items []Item
	seen := map[string]bool{}
	add := func(it Item) {
		key := string(it.Kind) + "/" + it.ID
		if seen[key] {
			return
		}
		seen[key] = true
		items = append(items, it)
	}

	for i := range events {
		e := events[i]
		if mentions(e, kind, id) {
			add(Item{Kind: ItemEvent, ID: e.ID, Timestamp: e.Timestamp, Event: &e, EventType: e.Type})
		}
	}

	for _, l := range doc.LinksTo(kind, id) {
		switch l.LinkType {
		case document.LinkNote:
			if n, ok := doc.Note(l.NoteID); ok {
				add(noteItem(n, l.ID))
			}
		case document.LinkCalendarEvent:
			if ce, ok := doc.CalendarEvent(l.CalendarEventID); ok {
				add(calendarItem(ce, l.ID, false))
			}
		case document.LinkInteraction:
			if ce, ok := doc.CalendarEvent(l.InteractionID); ok {
				add(calendarItem(ce, l.ID, false))
			} else if in, ok := doc.Interaction(l.InteractionID); ok {
				add(calendarItem(document.CalendarEventFromInteraction(in), l.ID, true))
			}
		}
	}

	if kind == document.KindCalendarEvent {
		if ce, ok := doc.CalendarEvent(id); ok {
			add(calendarItem(ce, "", false))
		}
	}

	slices.SortFunc(items, compare)
	return items
}

// mentions reports whether e is about (kind, id), either as its own entity
// or through a payload reference. Interaction and audit events count for
// the calendar event that replaced the record.
func mentions(e event.Event, kind document.Kind, id string) bool {
	if e.EntityID == id {
		switch document.Kind(e.Type.Prefix()) {
		case kind:
			return true
		case document.KindInteraction, document.KindAudit:
			if kind == document.KindCalendarEvent {
				return true
			}
		}
	}
	for _, r := range e.Refs() {
		if r.Kind == kind && r.ID == id {
			return true
		}
	}
	return false
}

func noteItem(n document.Note, linkID string) Item {
	return Item{Kind: ItemNote, ID: n.ID, Timestamp: n.CreatedAt, Note: &n, LinkID: linkID}
}

func calendarItem(ce document.CalendarEvent, linkID string, legacy bool) Item {
	ts := ce.OccurredAt
	if ts == "" {
		ts = ce.ScheduledFor
	}
	return Item{Kind: ItemCalendarEvent, ID: ce.ID, Timestamp: ts, CalendarEvent: &ce, LinkID: linkID, Legacy: legacy}
}

func compare(a, b Item) int {
	return cmp.Or(
		document.CompareTime(a.Timestamp, b.Timestamp),
		strings.Compare(a.ID, b.ID),
		strings.Compare(string(a.Kind), string(b.Kind)),
	)
}

// Title is a one-line description of the item.
func (it Item) Title() string {
	switch it.Kind {
	case ItemEvent:
		return fmt.Sprintf("%s %s", it.EventType, it.Event.EntityID)
	case ItemNote:
		if it.Note.Title != "" {
			return it.Note.Title
		}
		body, _, _ := strings.Cut(it.Note.Body, "\n")
		return body
	case ItemCalendarEvent:
		ce := it.CalendarEvent
		title := fmt.Sprintf("%s %s: %s", ce.Type, ce.Status, ce.Summary)
		if it.Legacy {
			title += " (legacy interaction)"
		}
		return title
	}
	return it.ID
}

// Write renders items one per line as timestamp, kind, id and title
// separated by tabs.
func Write(w io.Writer, items []Item) error {
	for _, it := range items {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", it.Timestamp, it.Kind, it.ID, it.Title()); err != nil {
			return err
		}
	}
	return nil
}
