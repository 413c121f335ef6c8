package event

import (
	"github.com/shopspring/decimal"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
)

// Payload is the tagged union of event bodies. Each event type has exactly
// one payload struct; the struct reports its own type.
type Payload interface {
	EventType() Type

	// Refs lists the entities the payload mentions besides the event's own
	// entity id. The timeline uses them for indirect matches.
	Refs() []Ref
}

// Ref points at an entity from inside a payload.
type Ref struct {
	Kind document.Kind
	ID   string
}

func refs(pairs ...Ref) []Ref {
	var out []Ref
	for _, r := range pairs {
		if r.ID != "" {
			out = append(out, r)
		}
	}
	return out
}

func strRef(kind document.Kind, id *string) Ref {
	if id == nil {
		return Ref{}
	}
	return Ref{Kind: kind, ID: *id}
}

// Organization

type OrganizationCreatedPayload struct {
	Name     string `json:"name"`
	Domain   string `json:"domain,omitempty"`
	Industry string `json:"industry,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

func (OrganizationCreatedPayload) EventType() Type { return OrganizationCreated }
func (OrganizationCreatedPayload) Refs() []Ref     { return nil }

type OrganizationUpdatedPayload struct {
	Name     *string `json:"name,omitempty"`
	Domain   *string `json:"domain,omitempty"`
	Industry *string `json:"industry,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

func (OrganizationUpdatedPayload) EventType() Type { return OrganizationUpdated }
func (OrganizationUpdatedPayload) Refs() []Ref     { return nil }

// Account

type AccountCreatedPayload struct {
	OrganizationID string `json:"organizationId,omitempty"`
	Name           string `json:"name"`
	AccountType    string `json:"accountType,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	Status         string `json:"status,omitempty"`
}

func (AccountCreatedPayload) EventType() Type { return AccountCreated }
func (p AccountCreatedPayload) Refs() []Ref {
	return refs(Ref{document.KindOrganization, p.OrganizationID})
}

type AccountUpdatedPayload struct {
	OrganizationID *string `json:"organizationId,omitempty"`
	Name           *string `json:"name,omitempty"`
	AccountType    *string `json:"accountType,omitempty"`
	Address        *string `json:"address,omitempty"`
	City           *string `json:"city,omitempty"`
	Status         *string `json:"status,omitempty"`
}

func (AccountUpdatedPayload) EventType() Type { return AccountUpdated }
func (p AccountUpdatedPayload) Refs() []Ref {
	return refs(strRef(document.KindOrganization, p.OrganizationID))
}

type AccountContactLinkedPayload struct {
	ContactID string `json:"contactId"`
	Role      string `json:"role,omitempty"`
}

func (AccountContactLinkedPayload) EventType() Type { return AccountContactLinked }
func (p AccountContactLinkedPayload) Refs() []Ref {
	return refs(Ref{document.KindContact, p.ContactID})
}

type AccountContactUnlinkedPayload struct {
	ContactID string `json:"contactId"`
}

func (AccountContactUnlinkedPayload) EventType() Type { return AccountContactUnlinked }
func (p AccountContactUnlinkedPayload) Refs() []Ref {
	return refs(Ref{document.KindContact, p.ContactID})
}

type AccountCodeLinkedPayload struct {
	CodeID string `json:"codeId"`
}

func (AccountCodeLinkedPayload) EventType() Type { return AccountCodeLinked }
func (p AccountCodeLinkedPayload) Refs() []Ref {
	return refs(Ref{document.KindCode, p.CodeID})
}

type AccountCodeUnlinkedPayload struct {
	CodeID string `json:"codeId"`
}

func (AccountCodeUnlinkedPayload) EventType() Type { return AccountCodeUnlinked }
func (p AccountCodeUnlinkedPayload) Refs() []Ref {
	return refs(Ref{document.KindCode, p.CodeID})
}

// Contact

type ContactCreatedPayload struct {
	OrganizationID string `json:"organizationId,omitempty"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Title          string `json:"title,omitempty"`
}

func (ContactCreatedPayload) EventType() Type { return ContactCreated }
func (p ContactCreatedPayload) Refs() []Ref {
	return refs(Ref{document.KindOrganization, p.OrganizationID})
}

type ContactUpdatedPayload struct {
	OrganizationID *string `json:"organizationId,omitempty"`
	FirstName      *string `json:"firstName,omitempty"`
	LastName       *string `json:"lastName,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	Title          *string `json:"title,omitempty"`
}

func (ContactUpdatedPayload) EventType() Type { return ContactUpdated }
func (p ContactUpdatedPayload) Refs() []Ref {
	return refs(strRef(document.KindOrganization, p.OrganizationID))
}

// Note

type NoteCreatedPayload struct {
	Title  string `json:"title,omitempty"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned,omitempty"`
}

func (NoteCreatedPayload) EventType() Type { return NoteCreated }
func (NoteCreatedPayload) Refs() []Ref     { return nil }

type NoteUpdatedPayload struct {
	Title  *string `json:"title,omitempty"`
	Body   *string `json:"body,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

func (NoteUpdatedPayload) EventType() Type { return NoteUpdated }
func (NoteUpdatedPayload) Refs() []Ref     { return nil }

type NoteDeletedPayload struct{}

func (NoteDeletedPayload) EventType() Type { return NoteDeleted }
func (NoteDeletedPayload) Refs() []Ref     { return nil }

// Calendar events

type CalendarEventScheduledPayload struct {
	Type            document.CalendarType `json:"type"`
	Summary         string                `json:"summary"`
	Description     string                `json:"description,omitempty"`
	ScheduledFor    string                `json:"scheduledFor"`
	DurationMinutes *int                  `json:"durationMinutes,omitempty"`
	Location        string                `json:"location,omitempty"`
	RecurrenceRule  string                `json:"recurrenceRule,omitempty"`
	AuditData       *document.AuditData   `json:"auditData,omitempty"`
}

func (CalendarEventScheduledPayload) EventType() Type { return CalendarEventScheduled }
func (p CalendarEventScheduledPayload) Refs() []Ref {
	if p.AuditData == nil {
		return nil
	}
	return refs(Ref{document.KindAccount, p.AuditData.AccountID})
}

type CalendarEventUpdatedPayload struct {
	Summary         *string             `json:"summary,omitempty"`
	Description     *string             `json:"description,omitempty"`
	ScheduledFor    *string             `json:"scheduledFor,omitempty"`
	DurationMinutes *int                `json:"durationMinutes,omitempty"`
	Location        *string             `json:"location,omitempty"`
	RecurrenceRule  *string             `json:"recurrenceRule,omitempty"`
	AuditData       *document.AuditData `json:"auditData,omitempty"`
}

func (CalendarEventUpdatedPayload) EventType() Type { return CalendarEventUpdated }
func (p CalendarEventUpdatedPayload) Refs() []Ref {
	if p.AuditData == nil {
		return nil
	}
	return refs(Ref{document.KindAccount, p.AuditData.AccountID})
}

// CalendarEventCompletedPayload marks an event as done. OccurredAt defaults
// to the event timestamp when empty.
type CalendarEventCompletedPayload struct {
	OccurredAt string `json:"occurredAt,omitempty"`
}

func (CalendarEventCompletedPayload) EventType() Type { return CalendarEventCompleted }
func (CalendarEventCompletedPayload) Refs() []Ref     { return nil }

type CalendarEventCanceledPayload struct{}

func (CalendarEventCanceledPayload) EventType() Type { return CalendarEventCanceled }
func (CalendarEventCanceledPayload) Refs() []Ref     { return nil }

type CalendarEventDeletedPayload struct{}

func (CalendarEventDeletedPayload) EventType() Type { return CalendarEventDeleted }
func (CalendarEventDeletedPayload) Refs() []Ref     { return nil }

// Codes

type CodeCreatedPayload struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

func (CodeCreatedPayload) EventType() Type { return CodeCreated }
func (CodeCreatedPayload) Refs() []Ref     { return nil }

type CodeUpdatedPayload struct {
	Code        *string `json:"code,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (CodeUpdatedPayload) EventType() Type { return CodeUpdated }
func (CodeUpdatedPayload) Refs() []Ref     { return nil }

// Entity links

type EntityLinkCreatedPayload struct {
	LinkType        document.LinkType `json:"linkType"`
	NoteID          string            `json:"noteId,omitempty"`
	InteractionID   string            `json:"interactionId,omitempty"`
	CalendarEventID string            `json:"calendarEventId,omitempty"`
	EntityType      document.Kind     `json:"entityType"`
	EntityID        string            `json:"entityId"`
}

func (EntityLinkCreatedPayload) EventType() Type { return EntityLinkCreated }
func (p EntityLinkCreatedPayload) Refs() []Ref {
	return refs(
		Ref{document.KindNote, p.NoteID},
		Ref{document.KindInteraction, p.InteractionID},
		Ref{document.KindCalendarEvent, p.CalendarEventID},
		Ref{p.EntityType, p.EntityID},
	)
}

type EntityLinkDeletedPayload struct{}

func (EntityLinkDeletedPayload) EventType() Type { return EntityLinkDeleted }
func (EntityLinkDeletedPayload) Refs() []Ref     { return nil }

// EntityLinkMigratedPayload retargets a legacy interaction link at the
// calendar event that replaced the interaction.
type EntityLinkMigratedPayload struct {
	CalendarEventID string `json:"calendarEventId"`
}

func (EntityLinkMigratedPayload) EventType() Type { return EntityLinkMigrated }
func (p EntityLinkMigratedPayload) Refs() []Ref {
	return refs(Ref{document.KindCalendarEvent, p.CalendarEventID})
}

// Legacy

type InteractionCreatedPayload struct {
	Type            string `json:"type"`
	Summary         string `json:"summary,omitempty"`
	Notes           string `json:"notes,omitempty"`
	ContactID       string `json:"contactId,omitempty"`
	AccountID       string `json:"accountId,omitempty"`
	ScheduledFor    string `json:"scheduledFor,omitempty"`
	OccurredAt      string `json:"occurredAt,omitempty"`
	Status          string `json:"status,omitempty"`
	DurationMinutes *int   `json:"durationMinutes,omitempty"`
	Location        string `json:"location,omitempty"`
}

func (InteractionCreatedPayload) EventType() Type { return InteractionCreated }
func (p InteractionCreatedPayload) Refs() []Ref {
	return refs(Ref{document.KindContact, p.ContactID}, Ref{document.KindAccount, p.AccountID})
}

type InteractionUpdatedPayload struct {
	Type            *string `json:"type,omitempty"`
	Summary         *string `json:"summary,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	ContactID       *string `json:"contactId,omitempty"`
	AccountID       *string `json:"accountId,omitempty"`
	ScheduledFor    *string `json:"scheduledFor,omitempty"`
	OccurredAt      *string `json:"occurredAt,omitempty"`
	Status          *string `json:"status,omitempty"`
	DurationMinutes *int    `json:"durationMinutes,omitempty"`
	Location        *string `json:"location,omitempty"`
}

func (InteractionUpdatedPayload) EventType() Type { return InteractionUpdated }
func (p InteractionUpdatedPayload) Refs() []Ref {
	return refs(strRef(document.KindContact, p.ContactID), strRef(document.KindAccount, p.AccountID))
}

type AuditCreatedPayload struct {
	AccountID     string           `json:"accountId"`
	Score         *decimal.Decimal `json:"score,omitempty"`
	FloorsVisited *int             `json:"floorsVisited,omitempty"`
	Notes         string           `json:"notes,omitempty"`
	OccurredAt    string           `json:"occurredAt,omitempty"`
	Canceled      bool             `json:"canceled,omitempty"`
}

func (AuditCreatedPayload) EventType() Type { return AuditCreated }
func (p AuditCreatedPayload) Refs() []Ref {
	return refs(Ref{document.KindAccount, p.AccountID})
}

type AuditUpdatedPayload struct {
	Score         *decimal.Decimal `json:"score,omitempty"`
	FloorsVisited *int             `json:"floorsVisited,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	OccurredAt    *string          `json:"occurredAt,omitempty"`
	Canceled      *bool            `json:"canceled,omitempty"`
}

func (AuditUpdatedPayload) EventType() Type { return AuditUpdated }
func (AuditUpdatedPayload) Refs() []Ref     { return nil }

// newPayload returns a pointer to the zero payload for t.
func newPayload(t Type) (Payload, bool) {
	switch t {
	case OrganizationCreated:
		return &OrganizationCreatedPayload{}, true
	case OrganizationUpdated:
		return &OrganizationUpdatedPayload{}, true
	case AccountCreated:
		return &AccountCreatedPayload{}, true
	case AccountUpdated:
		return &AccountUpdatedPayload{}, true
	case AccountContactLinked:
		return &AccountContactLinkedPayload{}, true
	case AccountContactUnlinked:
		return &AccountContactUnlinkedPayload{}, true
	case AccountCodeLinked:
		return &AccountCodeLinkedPayload{}, true
	case AccountCodeUnlinked:
		return &AccountCodeUnlinkedPayload{}, true
	case ContactCreated:
		return &ContactCreatedPayload{}, true
	case ContactUpdated:
		return &ContactUpdatedPayload{}, true
	case NoteCreated:
		return &NoteCreatedPayload{}, true
	case NoteUpdated:
		return &NoteUpdatedPayload{}, true
	case NoteDeleted:
		return &NoteDeletedPayload{}, true
	case CalendarEventScheduled:
		return &CalendarEventScheduledPayload{}, true
	case CalendarEventUpdated:
		return &CalendarEventUpdatedPayload{}, true
	case CalendarEventCompleted:
		return &CalendarEventCompletedPayload{}, true
	case CalendarEventCanceled:
		return &CalendarEventCanceledPayload{}, true
	case CalendarEventDeleted:
		return &CalendarEventDeletedPayload{}, true
	case CodeCreated:
		return &CodeCreatedPayload{}, true
	case CodeUpdated:
		return &CodeUpdatedPayload{}, true
	case EntityLinkCreated:
		return &EntityLinkCreatedPayload{}, true
	case EntityLinkDeleted:
		return &EntityLinkDeletedPayload{}, true
	case EntityLinkMigrated:
		return &EntityLinkMigratedPayload{}, true
	case InteractionCreated:
		return &InteractionCreatedPayload{}, true
	case InteractionUpdated:
		return &InteractionUpdatedPayload{}, true
	case AuditCreated:
		return &AuditCreatedPayload{}, true
	case AuditUpdated:
		return &AuditUpdatedPayload{}, true
	}
	return nil, false
}
