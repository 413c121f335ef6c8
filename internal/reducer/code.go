package reducer

import (
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
)

func reduceCode(doc *document.Document, e event.Event) (*document.Document, error) {
	switch e.Type {
	case event.CodeCreated:
		p, err := event.PayloadOf[event.CodeCreatedPayload](e)
		if err != nil {
			return nil, err
		}
		if err := ensureNew(doc, document.KindCode, e.EntityID); err != nil {
			return nil, err
		}
		c := document.Code{
			ID:          e.EntityID,
			Code:        p.Code,
			Description: p.Description,
			CreatedAt:   e.Timestamp,
			UpdatedAt:   e.Timestamp,
		}
		if err := document.CheckStruct(c); err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Codes = put(out, document.KindCode, doc.Codes, e.EntityID, created(e, c))
		return out, nil

	case event.CodeUpdated:
		p, err := event.PayloadOf[event.CodeUpdatedPayload](e)
		if err != nil {
			return nil, err
		}
		fields, err := touched(p)
		if err != nil {
			return nil, err
		}
		codes, err := update(doc, doc.Codes, document.KindCode, e, fields, func(c *document.Code) error {
			set(&c.Code, p.Code)
			set(&c.Description, p.Description)
			c.UpdatedAt = e.Timestamp
			return document.CheckStruct(*c)
		})
		if err != nil {
			return nil, err
		}
		out := doc.Clone()
		out.Codes = codes
		return out, nil
	}
	return nil, unknownAction(e)
}
