package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

// Interactions and audits are legacy kinds. New installations never emit
// these events, but historical logs still carry them.

func reduceInteraction(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.InteractionCreated:
		p, err := event.PayloadOf[event.InteractionCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindInteraction, e.EntityID); err != nil {
			return nil, err
		}
		in := document.Interaction{
			ID:              e.EntityID,
			Type:            p.Type,
			Summary:         p.Summary,
			Notes:           p.Notes,
			ContactID:       p.ContactID,
			AccountID:       p.AccountID,
			ScheduledFor:    p.ScheduledFor,
			OccurredAt:      p.OccurredAt,
			Status:          p.Status,
			DurationMinutes: p.DurationMinutes,
			Location:        p.Location,
			CreatedAt:       e.Timestamp,
			UpdatedAt:       e.Timestamp,
		}
		if err := document.CheckStruct(in); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Interactions = put(out, document.KindInteraction, doc.Interactions, e.EntityID, created(e, in))
		return out, nil

	case event.InteractionUpdated:
		p, err := event.PayloadOf[event.InteractionUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		ins, err := update(doc, doc.Interactions, document.KindInteraction, e, fields, func(in *document.Interaction) error {
			set(&in.Type, p.Type)
			set(&in.Summary, p.Summary)
			set(&in.Notes, p.Notes)
			set(&in.ContactID, p.ContactID)
			set(&in.AccountID, p.AccountID)
			set(&in.ScheduledFor, p.ScheduledFor)
			set(&in.OccurredAt, p.OccurredAt)
			set(&in.Status, p.Status)
			if p.DurationMinutes != nil {
				in.DurationMinutes = p.DurationMinutes
			}
			set(&in.Location, p.Location)
			in.UpdatedAt = e.Timestamp
			return document.CheckStruct(*in)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Interactions = ins
		return out, nil
	}
	return nil, unknownAction(e)
}

func reduceAudit(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.AuditCreated:
		p, err := event.PayloadOf[event.AuditCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindAudit, e.EntityID); err != nil {
			return nil, err
		}
		a := document.Audit{
			ID:            e.EntityID,
			AccountID:     p.AccountID,
			Score:         p.Score,
			FloorsVisited: p.FloorsVisited,
			Notes:         p.Notes,
			OccurredAt:    p.OccurredAt,
			Canceled:      p.Canceled,
			CreatedAt:     e.Timestamp,
			UpdatedAt:     e.Timestamp,
		}
		if err := document.CheckStruct(a); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Audits = put(out, document.KindAudit, doc.Audits, e.EntityID, created(e, a))
		return out, nil

	case event.AuditUpdated:
		p, err := event.PayloadOf[event.AuditUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		audits, err := update(doc, doc.Audits, document.KindAudit, e, fields, func(a *document.Audit) error {
			if p.Score != nil {
				a.Score = p.Score
			}
			if p.FloorsVisited != nil {
				a.FloorsVisited = p.FloorsVisited
			}
			set(&a.Notes, p.Notes)
			set(&a.OccurredAt, p.OccurredAt)
			set(&a.Canceled, p.Canceled)
			a.UpdatedAt = e.Timestamp
			return document.CheckStruct(*a)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Audits = audits
		return out, nil
	}
	return nil, unknownAction(e)
}
