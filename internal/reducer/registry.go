// Package reducer folds events into documents. Every entity kind has one
// pure reducer; a Registry maps event type prefixes to reducers.
package reducer

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// Reducer folds one event into a document and returns the new document.
// Reducers write sections only through document.Writable and must not
// perform I/O. On a draft, input and output share written sections.
type Reducer func(doc *document.Document, e event.Event) (*document.Document, error)

// Registry maps event type prefixes ("note", "calendarEvent") to reducers.
// A Registry is built once and then only read.
type Registry struct {
	reducers map[string]Reducer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{reducers: make(map[string]Reducer)}
}

// Default returns a registry with every entity reducer registered.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister("organization", reduceOrganization)
	r.MustRegister("account", reduceAccount)
	r.MustRegister("contact", reduceContact)
	r.MustRegister("note", reduceNote)
	r.MustRegister("calendarEvent", reduceCalendarEvent)
	r.MustRegister("code", reduceCode)
	r.MustRegister("entityLink", reduceEntityLink)
	r.MustRegister("interaction", reduceInteraction)
	r.MustRegister("audit", reduceAudit)
	return r
}

// Register adds fn for every event type starting with prefix.
func (r *Registry) Register(prefix string, fn Reducer) error {
	if prefix == "" {
		return fmt.Errorf("register reducer: empty prefix")
	}
	if fn == nil {
		return fmt.Errorf("register reducer %q: nil reducer", prefix)
	}
	if _, dup := r.reducers[prefix]; dup {
		return fmt.Errorf("register reducer %q: already registered", prefix)
	}
	r.reducers[prefix] = fn
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(prefix string, fn Reducer) {
	if err := r.Register(prefix, fn); err != nil {
		panic(err)
	}
}

// Lookup returns the reducer for t.
func (r *Registry) Lookup(t event.Type) (Reducer, bool) {
	fn, ok := r.reducers[t.Prefix()]
	return fn, ok
}

// Prefixes returns the registered prefixes, sorted.
func (r *Registry) Prefixes() []string {
	return slices.Sorted(maps.Keys(r.reducers))
}

// Fold applies a single event. It does not validate the event; callers go
// through the dispatcher for that.
func (r *Registry) Fold(doc *document.Document, e event.Event) (*document.Document, error) {
	fn, ok := r.Lookup(e.Type)
	if !ok {
		return nil, errs.UnknownEventType(string(e.Type)).WithEvent(e.ID, string(e.Type))
	}
	out, err := fn(doc, e)
	if err != nil {
		var coded *errs.Error
		if errors.As(err, &coded) {
			return nil, coded.WithEvent(e.ID, string(e.Type))
		}
		return nil, fmt.Errorf("fold %s %s: %w", e.Type, e.ID, err)
	}
	return out, nil
}

// FoldAll applies events in order, stopping at the first error. doc is
// never modified.
func (r *Registry) FoldAll(doc *document.Document, events []event.Event) (*document.Document, error) {
	if len(events) == 0 {
		return doc, nil
	}
	doc = doc.Draft()
	for _, e := range events {
		next, err := r.Fold(doc, e)
		if err != nil {
			return nil, err
		}
		doc = next
	}
	return doc.Done(), nil
}
