package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceContact(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.ContactCreated:
		p, err := event.PayloadOf[event.ContactCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindContact, e.EntityID); err != nil {
			return nil, err
		}
		if p.OrganizationID != "" {
			if err := ensureExists(doc, document.KindOrganization, p.OrganizationID); err != nil {
				return nil, err
			}
		}
		c := document.Contact{
			ID:             e.EntityID,
			OrganizationID: p.OrganizationID,
			FirstName:      p.FirstName,
			LastName:       p.LastName,
			Email:          p.Email,
			Phone:          p.Phone,
			Title:          p.Title,
			CreatedAt:      e.Timestamp,
			UpdatedAt:      e.Timestamp,
		}
		if err := document.CheckStruct(c); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Contacts = put(out, document.KindContact, doc.Contacts, e.EntityID, created(e, c))
		return out, nil

	case event.ContactUpdated:
		p, err := event.PayloadOf[event.ContactUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		if p.OrganizationID != nil && *p.OrganizationID != "" {
			if err := ensureExists(doc, document.KindOrganization, *p.OrganizationID); err != nil {
				return nil, err
			}
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		contacts, err := update(doc, doc.Contacts, document.KindContact, e, fields, func(c *document.Contact) error {
			set(&c.OrganizationID, p.OrganizationID)
			set(&c.FirstName, p.FirstName)
			set(&c.LastName, p.LastName)
			set(&c.Email, p.Email)
			set(&c.Phone, p.Phone)
			set(&c.Title, p.Title)
			c.UpdatedAt = e.Timestamp
			return document.CheckStruct(*c)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Contacts = contacts
		return out, nil
	}
	return nil, unknownAction(e)
}
