package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceEntityLink(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.EntityLinkCreated:
		p, err := event.PayloadOf[event.EntityLinkCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindEntityLink, e.EntityID); err != nil {
			return nil, err
		}
		link := document.EntityLink{
			ID:              e.EntityID,
			LinkType:        p.LinkType,
			NoteID:          p.NoteID,
			InteractionID:   p.InteractionID,
			CalendarEventID: p.CalendarEventID,
			EntityType:      p.EntityType,
			EntityID:        p.EntityID,
			CreatedAt:       e.Timestamp,
		}
		if err := document.CheckEntityLink(link); err != nil {
			return nil, err
		}
		srcKind, srcID := link.Source()
		if err := ensureExists(doc, srcKind, srcID); err != nil {
			return nil, err
		}
		if err := ensureExists(doc, link.EntityType, link.EntityID); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Relations.EntityLinks = put(out, document.KindEntityLink, doc.Relations.EntityLinks, e.EntityID, created(e, link))
		return out, nil

	case event.EntityLinkDeleted:
		if err := ensureExists(doc, document.KindEntityLink, e.EntityID); err != nil {
			return nil, err
		}
		out := doc.WithoutLink(e.EntityID)
		return out.Tombstone(document.KindEntityLink, e.EntityID, e.Stamp()), nil

	case event.EntityLinkMigrated:
		p, err := event.PayloadOf[event.EntityLinkMigratedPayload](e)
		if err != nil {
			return nil, err
		}
		link, ok := doc.Link(e.EntityID)
		if !ok {
			return nil, errs.NotFound(string(document.KindEntityLink), e.EntityID)
		}
		if link.LinkType == document.LinkCalendarEvent && link.CalendarEventID == p.CalendarEventID {
			return doc, nil
		}
		if link.LinkType != document.LinkInteraction {
			return nil, errs.Validation("entity link %q has linkType %s, only interaction links migrate", link.ID, link.LinkType)
		}
		if err := ensureExists(doc, document.KindCalendarEvent, p.CalendarEventID); err != nil {
			return nil, err
		}
		links, err := update(doc, doc.Relations.EntityLinks, document.KindEntityLink, e,
			[]string{"linkType", "interactionId", "calendarEventId"},
			func(l *document.EntityLink) error {
				l.LinkType = document.LinkCalendarEvent
				l.InteractionID = ""
				l.CalendarEventID = p.CalendarEventID
				return document.CheckEntityLink(*l)
			})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Relations.EntityLinks = links
		return out, nil
	}
	return nil, unknownAction(e)
}
