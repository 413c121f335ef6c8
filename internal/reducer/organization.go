package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceOrganization(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.OrganizationCreated:
		p, err := event.PayloadOf[event.OrganizationCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindOrganization, e.EntityID); err != nil {
			return nil, err
		}
		org := document.Organization{
			ID:        e.EntityID,
			Name:      p.Name,
			Domain:    p.Domain,
			Industry:  p.Industry,
			Notes:     p.Notes,
			CreatedAt: e.Timestamp,
			UpdatedAt: e.Timestamp,
		}
		if err := document.CheckStruct(org); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Organizations = put(out, document.KindOrganization, doc.Organizations, e.EntityID, created(e, org))
		return out, nil

	case event.OrganizationUpdated:
		p, err := event.PayloadOf[event.OrganizationUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		orgs, err := update(doc, doc.Organizations, document.KindOrganization, e, fields, func(o *document.Organization) error {
			set(&o.Name, p.Name)
			set(&o.Domain, p.Domain)
			set(&o.Industry, p.Industry)
			set(&o.Notes, p.Notes)
			o.UpdatedAt = e.Timestamp
			return document.CheckStruct(*o)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Organizations = orgs
		return out, nil
	}
	return nil, unknownAction(e)
}
