package document

import "github.com/shopspring/decimal"

type Organization struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Domain    string `json:"domain,omitempty"`
	Industry  string `json:"industry,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"createdAt" validate:"required"`
	UpdatedAt string `json:"updatedAt" validate:"required"`
}

type Account struct {
	ID             string `json:"id" validate:"required"`
	OrganizationID string `json:"organizationId,omitempty"`
	Name           string `json:"name" validate:"required"`
	AccountType    string `json:"accountType,omitempty"`
	Address        string `json:"address,omitempty"`
	City           string `json:"city,omitempty"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"createdAt" validate:"required"`
	UpdatedAt      string `json:"updatedAt" validate:"required"`
}

type Contact struct {
	ID             string `json:"id" validate:"required"`
	OrganizationID string `json:"organizationId,omitempty"`
	FirstName      string `json:"firstName" validate:"required"`
	LastName       string `json:"lastName,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Title          string `json:"title,omitempty"`
	CreatedAt      string `json:"createdAt" validate:"required"`
	UpdatedAt      string `json:"updatedAt" validate:"required"`
}

type Note struct {
	ID        string `json:"id" validate:"required"`
	Title     string `json:"title,omitempty"`
	Body      string `json:"body"`
	Pinned    bool   `json:"pinned"`
	CreatedAt string `json:"createdAt" validate:"required"`
	UpdatedAt string `json:"updatedAt" validate:"required"`
}

type Code struct {
	ID          string `json:"id" validate:"required"`
	Code        string `json:"code" validate:"required"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt" validate:"required"`
	UpdatedAt   string `json:"updatedAt" validate:"required"`
}

// CalendarType is the kind of activity a calendar event records.
type CalendarType string

const (
	CalendarMeeting CalendarType = "meeting"
	CalendarCall    CalendarType = "call"
	CalendarEmail   CalendarType = "email"
	CalendarAudit   CalendarType = "audit"
	CalendarOther   CalendarType = "other"
)

// Status is the lifecycle state of a calendar event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// AuditData carries the audit-specific fields of an audit calendar event.
// Score is a decimal so documents never hold floats.
type AuditData struct {
	AccountID     string           `json:"accountId" validate:"required"`
	Score         *decimal.Decimal `json:"score,omitempty"`
	FloorsVisited *int             `json:"floorsVisited,omitempty" validate:"omitempty,gte=0"`
}

// CalendarEvent is the unified activity record. OccurredAt is set exactly
// when Status is completed; AuditData only appears on audit events.
type CalendarEvent struct {
	ID              string       `json:"id" validate:"required"`
	Type            CalendarType `json:"type" validate:"required,oneof=meeting call email audit other"`
	Status          Status       `json:"status" validate:"required,oneof=scheduled completed canceled"`
	Summary         string       `json:"summary" validate:"required"`
	Description     string       `json:"description,omitempty"`
	ScheduledFor    string       `json:"scheduledFor" validate:"required"`
	OccurredAt      string       `json:"occurredAt,omitempty"`
	DurationMinutes *int         `json:"durationMinutes,omitempty" validate:"omitempty,gte=0"`
	Location        string       `json:"location,omitempty"`
	RecurrenceRule  string       `json:"recurrenceRule,omitempty"`
	AuditData       *AuditData   `json:"auditData,omitempty"`
	CreatedAt       string       `json:"createdAt" validate:"required"`
	UpdatedAt       string       `json:"updatedAt" validate:"required"`
}

// Interaction is the legacy activity record. It is retained read-only so
// history survives migration to CalendarEvent.
type Interaction struct {
	ID              string `json:"id" validate:"required"`
	Type            string `json:"type" validate:"required"`
	Summary         string `json:"summary,omitempty"`
	Notes           string `json:"notes,omitempty"`
	ContactID       string `json:"contactId,omitempty"`
	AccountID       string `json:"accountId,omitempty"`
	ScheduledFor    string `json:"scheduledFor,omitempty"`
	OccurredAt      string `json:"occurredAt,omitempty"`
	Status          string `json:"status,omitempty"`
	DurationMinutes *int   `json:"durationMinutes,omitempty" validate:"omitempty,gte=0"`
	Location        string `json:"location,omitempty"`
	CreatedAt       string `json:"createdAt" validate:"required"`
	UpdatedAt       string `json:"updatedAt" validate:"required"`
}

// Audit is the legacy account audit record.
type Audit struct {
	ID            string           `json:"id" validate:"required"`
	AccountID     string           `json:"accountId" validate:"required"`
	Score         *decimal.Decimal `json:"score,omitempty"`
	FloorsVisited *int             `json:"floorsVisited,omitempty" validate:"omitempty,gte=0"`
	Notes         string           `json:"notes,omitempty"`
	OccurredAt    string           `json:"occurredAt,omitempty"`
	Canceled      bool             `json:"canceled"`
	CreatedAt     string           `json:"createdAt" validate:"required"`
	UpdatedAt     string           `json:"updatedAt" validate:"required"`
}

// LinkType names the source collection of an EntityLink.
type LinkType string

const (
	LinkNote          LinkType = "note"
	LinkInteraction   LinkType = "interaction" // deprecated, rewritten by migration
	LinkCalendarEvent LinkType = "calendarEvent"
)

// EntityLink attaches a note or calendar event to any target entity.
// Exactly one source id is populated and it matches LinkType.
type EntityLink struct {
	ID              string   `json:"id" validate:"required"`
	LinkType        LinkType `json:"linkType" validate:"required,oneof=note interaction calendarEvent"`
	NoteID          string   `json:"noteId,omitempty"`
	InteractionID   string   `json:"interactionId,omitempty"`
	CalendarEventID string   `json:"calendarEventId,omitempty"`
	EntityType      Kind     `json:"entityType" validate:"required"`
	EntityID        string   `json:"entityId" validate:"required"`
	CreatedAt       string   `json:"createdAt" validate:"required"`
}

// Source returns the kind and id of the record the link attaches.
func (l EntityLink) Source() (Kind, string) {
	switch l.LinkType {
	case LinkNote:
		return KindNote, l.NoteID
	case LinkInteraction:
		return KindInteraction, l.InteractionID
	case LinkCalendarEvent:
		return KindCalendarEvent, l.CalendarEventID
	}
	return "", ""
}

type AccountContact struct {
	AccountID string `json:"accountId" validate:"required"`
	ContactID string `json:"contactId" validate:"required"`
	Role      string `json:"role,omitempty"`
}

type AccountCode struct {
	AccountID string `json:"accountId" validate:"required"`
	CodeID    string `json:"codeId" validate:"required"`
}

// PairKey is the relation table key for an (account, other) pair.
func PairKey(accountID, otherID string) string {
	return accountID + "|" + otherID
}
