package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceAccount(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.AccountCreated:
		p, err := event.PayloadOf[event.AccountCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindAccount, e.EntityID); err != nil {
			return nil, err
		}
		if p.OrganizationID != "" {
			if err := ensureExists(doc, document.KindOrganization, p.OrganizationID); err != nil {
				return nil, err
			}
		}
		acct := document.Account{
			ID:             e.EntityID,
			OrganizationID: p.OrganizationID,
			Name:           p.Name,
			AccountType:    p.AccountType,
			Address:        p.Address,
			City:           p.City,
			Status:         p.Status,
			CreatedAt:      e.Timestamp,
			UpdatedAt:      e.Timestamp,
		}
		if err := document.CheckStruct(acct); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Accounts = put(out, document.KindAccount, doc.Accounts, e.EntityID, created(e, acct))
		return out, nil

	case event.AccountUpdated:
		p, err := event.PayloadOf[event.AccountUpdatedPayload](e)
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
		accts, err := update(doc, doc.Accounts, document.KindAccount, e, fields, func(a *document.Account) error {
			set(&a.OrganizationID, p.OrganizationID)
			set(&a.Name, p.Name)
			set(&a.AccountType, p.AccountType)
			set(&a.Address, p.Address)
			set(&a.City, p.City)
			set(&a.Status, p.Status)
			a.UpdatedAt = e.Timestamp
			return document.CheckStruct(*a)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Accounts = accts
		return out, nil

	case event.AccountContactLinked:
		p, err := event.PayloadOf[event.AccountContactLinkedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureExists(doc, document.KindAccount, e.EntityID); err != nil {
			return nil, err
		}
		if err := ensureExists(doc, document.KindContact, p.ContactID); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Relations.AccountContacts = putEdge(out, "accountContacts", doc.Relations.AccountContacts, document.PairKey(e.EntityID, p.ContactID),
			document.Edge[document.AccountContact]{
				Value:   document.AccountContact{AccountID: e.EntityID, ContactID: p.ContactID, Role: p.Role},
				Present: true,
				Stamp:   e.Stamp(),
			})
		return out, nil

	case event.AccountContactUnlinked:
		p, err := event.PayloadOf[event.AccountContactUnlinkedPayload](e)
		if err != nil {
			return nil, err
		}
		key := document.PairKey(e.EntityID, p.ContactID)
		edge, ok := doc.Relations.AccountContacts[key]
		if !ok || !edge.Present {
			return nil, errs.NotFound("accountContact", key)
		}
		out := doc.Clone()
		out.Relations.AccountContacts = putEdge(out, "accountContacts", doc.Relations.AccountContacts, key,
			document.Edge[document.AccountContact]{Value: edge.Value, Present: false, Stamp: e.Stamp()})
		return out, nil

	case event.AccountCodeLinked:
		p, err := event.PayloadOf[event.AccountCodeLinkedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureExists(doc, document.KindAccount, e.EntityID); err != nil {
			return nil, err
		}
		if err := ensureExists(doc, document.KindCode, p.CodeID); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Relations.AccountCodes = putEdge(out, "accountCodes", doc.Relations.AccountCodes, document.PairKey(e.EntityID, p.CodeID),
			document.Edge[document.AccountCode]{
				Value:   document.AccountCode{AccountID: e.EntityID, CodeID: p.CodeID},
				Present: true,
				Stamp:   e.Stamp(),
			})
		return out, nil

	case event.AccountCodeUnlinked:
		p, err := event.PayloadOf[event.AccountCodeUnlinkedPayload](e)
		if err != nil {
			return nil, err
		}
		key := document.PairKey(e.EntityID, p.CodeID)
		edge, ok := doc.Relations.AccountCodes[key]
		if !ok || !edge.Present {
			return nil, errs.NotFound("accountCode", key)
		}
		out := doc.Clone()
		out.Relations.AccountCodes = putEdge(out, "accountCodes", doc.Relations.AccountCodes, key,
			document.Edge[document.AccountCode]{Value: edge.Value, Present: false, Stamp: e.Stamp()})
		return out, nil
	}
	return nil, unknownAction(e)
}
