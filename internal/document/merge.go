package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Merge combines two independently evolved copies of a document.
//
// Scalar fields resolve by stamp, later (timestamp, eventId) wins. Entity
// collections are the union of both sides minus every tombstoned id.
// Relation pairs are last-writer-wins registers. Links whose source was
// deleted on either side are dropped and tombstoned with the source.
//
// Merge is commutative, associative and idempotent. Neither input is
// modified.
func (d *Document) Merge(other *Document) (*Document, error) {
	out := New()
	out.Tombstones = mergeTombstones(d.Tombstones, other.Tombstones)

	var err error
	if out.Organizations, err = mergeEntries(d.Organizations, other.Organizations, out.Tombstones[KindOrganization]); err != nil {
		return nil, fmt.Errorf("merge organizations: %w", err)
	}
	if out.Accounts, err = mergeEntries(d.Accounts, other.Accounts, out.Tombstones[KindAccount]); err != nil {
		return nil, fmt.Errorf("merge accounts: %w", err)
	}
	if out.Contacts, err = mergeEntries(d.Contacts, other.Contacts, out.Tombstones[KindContact]); err != nil {
		return nil, fmt.Errorf("merge contacts: %w", err)
	}
	if out.Notes, err = mergeEntries(d.Notes, other.Notes, out.Tombstones[KindNote]); err != nil {
		return nil, fmt.Errorf("merge notes: %w", err)
	}
	if out.CalendarEvents, err = mergeEntries(d.CalendarEvents, other.CalendarEvents, out.Tombstones[KindCalendarEvent]); err != nil {
		return nil, fmt.Errorf("merge calendar events: %w", err)
	}
	if out.Codes, err = mergeEntries(d.Codes, other.Codes, out.Tombstones[KindCode]); err != nil {
		return nil, fmt.Errorf("merge codes: %w", err)
	}
	if out.Interactions, err = mergeEntries(d.Interactions, other.Interactions, out.Tombstones[KindInteraction]); err != nil {
		return nil, fmt.Errorf("merge interactions: %w", err)
	}
	if out.Audits, err = mergeEntries(d.Audits, other.Audits, out.Tombstones[KindAudit]); err != nil {
		return nil, fmt.Errorf("merge audits: %w", err)
	}
	if out.Relations.EntityLinks, err = mergeEntries(d.Relations.EntityLinks, other.Relations.EntityLinks, out.Tombstones[KindEntityLink]); err != nil {
		return nil, fmt.Errorf("merge entity links: %w", err)
	}
	if out.Relations.AccountContacts, err = mergeEdges(d.Relations.AccountContacts, other.Relations.AccountContacts); err != nil {
		return nil, fmt.Errorf("merge account contacts: %w", err)
	}
	if out.Relations.AccountCodes, err = mergeEdges(d.Relations.AccountCodes, other.Relations.AccountCodes); err != nil {
		return nil, fmt.Errorf("merge account codes: %w", err)
	}

	return out.dropOrphanedLinks(), nil
}

// dropOrphanedLinks removes links whose source was deleted. A link created
// on one device can point at a note deleted on another; the deletion wins.
func (d *Document) dropOrphanedLinks() *Document {
	out := d
	for _, id := range slices.Sorted(maps.Keys(d.Relations.EntityLinks)) {
		l := d.Relations.EntityLinks[id].Value
		kind, src := l.Source()
		stamp, gone := d.Tombstones[kind][src]
		if !gone {
			continue
		}
		out = out.WithoutLink(id)
		out = out.Tombstone(KindEntityLink, id, maxStamp(stamp, out.Tombstones[KindEntityLink][id]))
	}
	return out
}

// WithoutLink returns a copy of d without the link id.
func (d *Document) WithoutLink(id string) *Document {
	out := d.Clone()
	out.Relations.EntityLinks = Writable(out, string(KindEntityLink), d.Relations.EntityLinks)
	delete(out.Relations.EntityLinks, id)
	return out
}

func mergeTombstones(a, b map[Kind]map[string]Stamp) map[Kind]map[string]Stamp {
	out := make(map[Kind]map[string]Stamp)
	for _, src := range []map[Kind]map[string]Stamp{a, b} {
		for kind, ids := range src {
			if len(ids) == 0 {
				continue
			}
			dst := out[kind]
			if dst == nil {
				dst = make(map[string]Stamp, len(ids))
				out[kind] = dst
			}
			for id, s := range ids {
				dst[id] = maxStamp(dst[id], s)
			}
		}
	}
	return out
}

func mergeEntries[T any](a, b map[string]Entry[T], dead map[string]Stamp) (map[string]Entry[T], error) {
	out := make(map[string]Entry[T], max(len(a), len(b)))
	for id, ea := range a {
		if _, gone := dead[id]; gone {
			continue
		}
		eb, ok := b[id]
		if !ok {
			out[id] = ea
			continue
		}
		merged, err := mergeEntry(ea, eb)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		out[id] = merged
	}
	for id, eb := range b {
		if _, gone := dead[id]; gone {
			continue
		}
		if _, ok := a[id]; !ok {
			out[id] = eb
		}
	}
	return out, nil
}

// mergeEntry resolves each field independently by its stamp. Fields are
// addressed by JSON name, matching the names reducers stamp.
func mergeEntry[T any](a, b Entry[T]) (Entry[T], error) {
	af, err := fieldsOf(a.Value)
	if err != nil {
		return Entry[T]{}, err
	}
	bf, err := fieldsOf(b.Value)
	if err != nil {
		return Entry[T]{}, err
	}

	created := a.Clock.Created
	if b.Clock.Created.Compare(created) < 0 {
		created = b.Clock.Created
	}
	clock := Clock{Created: created}

	names := make(map[string]struct{})
	for _, m := range []map[string]json.RawMessage{af, bf} {
		for k := range m {
			names[k] = struct{}{}
		}
	}
	for _, m := range []map[string]Stamp{a.Clock.Fields, b.Clock.Fields} {
		for k := range m {
			names[k] = struct{}{}
		}
	}

	fields := make(map[string]json.RawMessage, len(names))
	for name := range names {
		va, sa := af[name], a.Clock.Field(name)
		vb, sb := bf[name], b.Clock.Field(name)

		v, s := va, sa
		c := sb.Compare(sa)
		if c > 0 || (c == 0 && bytes.Compare(vb, va) > 0) {
			v, s = vb, sb
		}
		if v != nil {
			fields[name] = v
		}
		if s != created {
			if clock.Fields == nil {
				clock.Fields = make(map[string]Stamp)
			}
			clock.Fields[name] = s
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return Entry[T]{}, err
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return Entry[T]{}, err
	}
	return Entry[T]{Value: value, Clock: clock}, nil
}

func fieldsOf(v any) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func mergeEdges[T any](a, b map[string]Edge[T]) (map[string]Edge[T], error) {
	out := maps.Clone(a)
	if out == nil {
		out = make(map[string]Edge[T], len(b))
	}
	for key, eb := range b {
		ea, ok := out[key]
		if !ok {
			out[key] = eb
			continue
		}
		win, err := pickEdge(ea, eb)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = win
	}
	return out, nil
}

// pickEdge chooses the later write. On an exact stamp tie removal wins,
// then the larger encoding, so the choice does not depend on argument order.
func pickEdge[T any](a, b Edge[T]) (Edge[T], error) {
	if c := b.Stamp.Compare(a.Stamp); c != 0 {
		if c > 0 {
			return b, nil
		}
		return a, nil
	}
	if a.Present != b.Present {
		if !a.Present {
			return a, nil
		}
		return b, nil
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return Edge[T]{}, err
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return Edge[T]{}, err
	}
	if bytes.Compare(jb, ja) > 0 {
		return b, nil
	}
	return a, nil
}
