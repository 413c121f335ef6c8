package document

import "maps"

// sections records which sections a draft has already copied.
type sections map[string]struct{}

// Draft returns a copy of d for the exclusive use of one fold. Sections
// obtained through Writable are copied on first write and written in place
// afterwards; d itself is never modified. Documents derived from a draft
// share its sections until Done.
func (d *Document) Draft() *Document {
	out := d.Clone()
	out.draft = sections{}
	return out
}

// Done ends the draft and returns an ordinary document.
func (d *Document) Done() *Document {
	if d.draft == nil {
		return d
	}
	out := d.Clone()
	out.draft = nil
	return out
}

// Writable returns m ready to be written as the named section of d.
// Outside a draft the result is always a fresh copy.
func Writable[K comparable, V any](d *Document, section string, m map[K]V) map[K]V {
	if d.draft != nil && m != nil {
		if _, owned := d.draft[section]; owned {
			return m
		}
	}
	out := maps.Clone(m)
	if out == nil {
		out = make(map[K]V)
	}
	if d.draft != nil {
		d.draft[section] = struct{}{}
	}
	return out
}
