package reducer

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// ensureNew rejects creates for live or deleted ids.
func ensureNew(doc *document.Document, kind document.Kind, id string) error {
	if doc.Has(kind, id) || doc.Tombstoned(kind, id) {
		return errs.AlreadyExists(string(kind), id)
	}
	return nil
}

func ensureExists(doc *document.Document, kind document.Kind, id string) error {
	if !doc.Has(kind, id) {
		return errs.NotFound(string(kind), id)
	}
	return nil
}

// put, putEdge and without write through document.Writable, so a fold
// running on a draft copies each section once per batch.
func put[T any](doc *document.Document, kind document.Kind, m map[string]document.Entry[T], id string, e document.Entry[T]) map[string]document.Entry[T] {
	out := document.Writable(doc, string(kind), m)
	out[id] = e
	return out
}

func putEdge[T any](doc *document.Document, section string, m map[string]document.Edge[T], key string, e document.Edge[T]) map[string]document.Edge[T] {
	out := document.Writable(doc, section, m)
	out[key] = e
	return out
}

func without[T any](doc *document.Document, kind document.Kind, m map[string]document.Entry[T], id string) map[string]document.Entry[T] {
	out := document.Writable(doc, string(kind), m)
	delete(out, id)
	return out
}

func created[T any](e event.Event, v T) document.Entry[T] {
	return document.Entry[T]{Value: v, Clock: document.NewClock(e.Stamp())}
}

// update applies mutate to the entry for e.EntityID and stamps fields plus
// updatedAt with the event.
func update[T any](doc *document.Document, m map[string]document.Entry[T], kind document.Kind, e event.Event, fields []string, mutate func(*T) error) (map[string]document.Entry[T], error) {
	entry, ok := m[e.EntityID]
	if !ok {
		return nil, errs.NotFound(string(kind), e.EntityID)
	}
	v := entry.Value
	if err := mutate(&v); err != nil {
		return nil, err
	}
	fields = append(slices.Clone(fields), "updatedAt")
	return put(doc, kind, m, e.EntityID, document.Entry[T]{
		Value: v,
		Clock: entry.Clock.Touch(e.Stamp(), fields...),
	}), nil
}

// touched returns the JSON names set in an update payload.
func touched(p any) ([]string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return slices.Sorted(maps.Keys(m)), nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// removeLinksFrom drops every link whose source is (kind, id) and
// tombstones it with the deleting event.
func removeLinksFrom(doc *document.Document, kind document.Kind, id string, e event.Event) *document.Document {
	out := doc
	for _, l := range doc.LinksFrom(kind, id) {
		out = out.WithoutLink(l.ID)
		out = out.Tombstone(document.KindEntityLink, l.ID, e.Stamp())
	}
	return out
}

func unknownAction(e event.Event) error {
	return errs.UnknownEventType(string(e.Type))
}
