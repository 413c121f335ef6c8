package document

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
)

// Entry is an entity value with its write clock.
type Entry[T any] struct {
	Value T     `json:"value"`
	Clock Clock `json:"clock"`
}

// Edge is a last-writer-wins register over a relation pair. Unlinked pairs
// stay in the table with Present false so a later merge cannot revive them
// with a stale link.
type Edge[T any] struct {
	Value   T     `json:"value"`
	Present bool  `json:"present"`
	Stamp   Stamp `json:"stamp"`
}

type Relations struct {
	AccountContacts map[string]Edge[AccountContact] `json:"accountContacts"`
	AccountCodes    map[string]Edge[AccountCode]    `json:"accountCodes"`
	EntityLinks     map[string]Entry[EntityLink]    `json:"entityLinks"`
}

// Document is the aggregate root.
type Document struct {
	Organizations  map[string]Entry[Organization]  `json:"organizations"`
	Accounts       map[string]Entry[Account]       `json:"accounts"`
	Contacts       map[string]Entry[Contact]       `json:"contacts"`
	Notes          map[string]Entry[Note]          `json:"notes"`
	CalendarEvents map[string]Entry[CalendarEvent] `json:"calendarEvents"`
	Codes          map[string]Entry[Code]          `json:"codes"`
	Interactions   map[string]Entry[Interaction]   `json:"interactions"`
	Audits         map[string]Entry[Audit]         `json:"audits"`
	Relations      Relations                       `json:"relations"`

	// Tombstones records deleted ids per kind. A tombstoned id can never be
	// recreated and wins over any concurrent edit during merge.
	Tombstones map[Kind]map[string]Stamp `json:"tombstones"`

	draft sections
}

// New returns an empty document.
func New() *Document {
	d := &Document{}
	d.normalize()
	return d
}

func (d *Document) normalize() {
	if d.Organizations == nil {
		d.Organizations = map[string]Entry[Organization]{}
	}
	if d.Accounts == nil {
		d.Accounts = map[string]Entry[Account]{}
	}
	if d.Contacts == nil {
		d.Contacts = map[string]Entry[Contact]{}
	}
	if d.Notes == nil {
		d.Notes = map[string]Entry[Note]{}
	}
	if d.CalendarEvents == nil {
		d.CalendarEvents = map[string]Entry[CalendarEvent]{}
	}
	if d.Codes == nil {
		d.Codes = map[string]Entry[Code]{}
	}
	if d.Interactions == nil {
		d.Interactions = map[string]Entry[Interaction]{}
	}
	if d.Audits == nil {
		d.Audits = map[string]Entry[Audit]{}
	}
	if d.Relations.AccountContacts == nil {
		d.Relations.AccountContacts = map[string]Edge[AccountContact]{}
	}
	if d.Relations.AccountCodes == nil {
		d.Relations.AccountCodes = map[string]Edge[AccountCode]{}
	}
	if d.Relations.EntityLinks == nil {
		d.Relations.EntityLinks = map[string]Entry[EntityLink]{}
	}
	if d.Tombstones == nil {
		d.Tombstones = map[Kind]map[string]Stamp{}
	}
}

// Clone returns a shallow copy. Section maps are shared; callers obtain a
// section through Writable before writing to it.
func (d *Document) Clone() *Document {
	out := *d
	return &out
}

// Tombstone returns a copy of d with id of kind marked deleted at s.
func (d *Document) Tombstone(kind Kind, id string, s Stamp) *Document {
	out := d.Clone()
	out.Tombstones = Writable(out, "tombstones", d.Tombstones)
	ids := Writable(out, "tombstones/"+string(kind), d.Tombstones[kind])
	ids[id] = s
	out.Tombstones[kind] = ids
	return out
}

// Tombstoned reports whether id of kind has been deleted.
func (d *Document) Tombstoned(kind Kind, id string) bool {
	_, ok := d.Tombstones[kind][id]
	return ok
}

// Has reports whether a live entity of kind exists with id.
func (d *Document) Has(kind Kind, id string) bool {
	var ok bool
	switch kind {
	case KindOrganization:
		_, ok = d.Organizations[id]
	case KindAccount:
		_, ok = d.Accounts[id]
	case KindContact:
		_, ok = d.Contacts[id]
	case KindNote:
		_, ok = d.Notes[id]
	case KindCalendarEvent:
		_, ok = d.CalendarEvents[id]
	case KindCode:
		_, ok = d.Codes[id]
	case KindEntityLink:
		_, ok = d.Relations.EntityLinks[id]
	case KindInteraction:
		_, ok = d.Interactions[id]
	case KindAudit:
		_, ok = d.Audits[id]
	}
	return ok
}

// Note returns the note with id.
func (d *Document) Note(id string) (Note, bool) {
	e, ok := d.Notes[id]
	return e.Value, ok
}

// CalendarEvent returns the calendar event with id.
func (d *Document) CalendarEvent(id string) (CalendarEvent, bool) {
	e, ok := d.CalendarEvents[id]
	return e.Value, ok
}

// Interaction returns the legacy interaction with id.
func (d *Document) Interaction(id string) (Interaction, bool) {
	e, ok := d.Interactions[id]
	return e.Value, ok
}

// Link returns the entity link with id.
func (d *Document) Link(id string) (EntityLink, bool) {
	e, ok := d.Relations.EntityLinks[id]
	return e.Value, ok
}

// Links returns every entity link ordered by id.
func (d *Document) Links() []EntityLink {
	return sortedValues(d.Relations.EntityLinks)
}

// LinksTo returns the links whose target is (kind, id), ordered by id.
func (d *Document) LinksTo(kind Kind, id string) []EntityLink {
	var out []EntityLink
	for _, l := range d.Links() {
		if l.EntityType == kind && l.EntityID == id {
			out = append(out, l)
		}
	}
	return out
}

// LinksFrom returns the links whose source is (kind, id), ordered by id.
func (d *Document) LinksFrom(kind Kind, id string) []EntityLink {
	var out []EntityLink
	for _, l := range d.Links() {
		if k, src := l.Source(); k == kind && src == id {
			out = append(out, l)
		}
	}
	return out
}

// AccountContactLinked reports whether the pair is currently linked.
func (d *Document) AccountContactLinked(accountID, contactID string) bool {
	return d.Relations.AccountContacts[PairKey(accountID, contactID)].Present
}

// AccountCodeLinked reports whether the pair is currently linked.
func (d *Document) AccountCodeLinked(accountID, codeID string) bool {
	return d.Relations.AccountCodes[PairKey(accountID, codeID)].Present
}

func sortedValues[T any](m map[string]Entry[T]) []T {
	ids := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id].Value)
	}
	return out
}

// Encode serializes the document. Map keys are sorted by encoding/json, so
// equal documents encode to equal bytes.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

// Hash returns a content hash of the encoded document.
func (d *Document) Hash() (string, error) {
	data, err := d.Encode()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return ir.DocumentHash(data), nil
}

// Decode parses an encoded document, fills missing sections and validates
// the result.
func Decode(data []byte) (*Document, error) {
	d := &Document{}
	if err := json.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	d.normalize()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}
