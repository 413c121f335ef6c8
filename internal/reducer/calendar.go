package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceCalendarEvent(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.CalendarEventScheduled:
		p, err := event.PayloadOf[event.CalendarEventScheduledPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindCalendarEvent, e.EntityID); err != nil {
			return nil, err
		}
		ce := document.CalendarEvent{
			ID:              e.EntityID,
			Type:            p.Type,
			Status:          document.StatusScheduled,
			Summary:         p.Summary,
			Description:     p.Description,
			ScheduledFor:    p.ScheduledFor,
			DurationMinutes: p.DurationMinutes,
			Location:        p.Location,
			RecurrenceRule:  p.RecurrenceRule,
			AuditData:       p.AuditData,
			CreatedAt:       e.Timestamp,
			UpdatedAt:       e.Timestamp,
		}
		if err := document.CheckCalendarEvent(ce); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.CalendarEvents = put(out, document.KindCalendarEvent, doc.CalendarEvents, e.EntityID, created(e, ce))
		return out, nil

	case event.CalendarEventUpdated:
		p, err := event.PayloadOf[event.CalendarEventUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		return updateCalendar(doc, e, fields, func(ce *document.CalendarEvent) {
			set(&ce.Summary, p.Summary)
			set(&ce.Description, p.Description)
			set(&ce.ScheduledFor, p.ScheduledFor)
			if p.DurationMinutes != nil {
				ce.DurationMinutes = p.DurationMinutes
			}
			set(&ce.Location, p.Location)
			set(&ce.RecurrenceRule, p.RecurrenceRule)
			if p.AuditData != nil {
				ce.AuditData = p.AuditData
			}
		})

	case event.CalendarEventCompleted:
		p, err := event.PayloadOf[event.CalendarEventCompletedPayload](e)
		if err != nil {
			return nil, err
		}
		occurredAt := p.OccurredAt
		if occurredAt == "" {
			occurredAt = e.Timestamp
		}
		return updateCalendar(doc, e, []string{"status", "occurredAt"}, func(ce *document.CalendarEvent) {
			ce.Status = document.StatusCompleted
			ce.OccurredAt = occurredAt
		})

	case event.CalendarEventCanceled:
		return updateCalendar(doc, e, []string{"status", "occurredAt"}, func(ce *document.CalendarEvent) {
			ce.Status = document.StatusCanceled
			ce.OccurredAt = ""
		})

	case event.CalendarEventDeleted:
		if err := ensureExists(doc, document.KindCalendarEvent, e.EntityID); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.CalendarEvents = without(out, document.KindCalendarEvent, doc.CalendarEvents, e.EntityID)
		out = out.Tombstone(document.KindCalendarEvent, e.EntityID, e.Stamp())
		return removeLinksFrom(out, document.KindCalendarEvent, e.EntityID, e), nil
	}
	return nil, unknownAction(e)
}

func updateCalendar(doc *document.Document, e event.Event, fields []string, mutate func(*document.CalendarEvent)) (*document.Document, error) {
	events, err := update(doc, doc.CalendarEvents, document.KindCalendarEvent, e, fields, func(ce *document.CalendarEvent) error {
		mutate(ce)
		ce.UpdatedAt = e.Timestamp
		return document.CheckCalendarEvent(*ce)
	})
	if err != nil {
		return nil, err
	}
	out := doc.Clone()
	out.CalendarEvents = events
	return out, nil
}
