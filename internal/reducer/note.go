package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceNote(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.NoteCreated:
		p, err := event.PayloadOf[event.NoteCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindNote, e.EntityID); err != nil {
			return nil, err
		}
		n := document.Note{
			ID:        e.EntityID,
			Title:     p.Title,
			Body:      p.Body,
			Pinned:    p.Pinned,
			CreatedAt: e.Timestamp,
			UpdatedAt: e.Timestamp,
		}
		out := doc.Clone()
		out.Notes = put(out, document.KindNote, doc.Notes, e.EntityID, created(e, n))
		return out, nil

	case event.NoteUpdated:
		p, err := event.PayloadOf[event.NoteUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		notes, err := update(doc, doc.Notes, document.KindNote, e, fields, func(n *document.Note) error {
			set(&n.Title, p.Title)
			set(&n.Body, p.Body)
			set(&n.Pinned, p.Pinned)
			n.UpdatedAt = e.Timestamp
			return nil
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Notes = notes
		return out, nil

	case event.NoteDeleted:
		if err := ensureExists(doc, document.KindNote, e.EntityID); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Notes = without(out, document.KindNote, doc.Notes, e.EntityID)
		out = out.Tombstone(document.KindNote, e.EntityID, e.Stamp())
		return removeLinksFrom(out, document.KindNote, e.EntityID, e), nil
	}
	return nil, unknownAction(e)
}
