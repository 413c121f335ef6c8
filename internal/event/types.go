// Package event defines the immutable domain event, its closed type
// enumeration, one payload struct per type, and the persistence record
// shape.
package event

import (
	"slices"
	"strings"
)

// Type identifies an event. The prefix before the dot names the entity
// reducer that folds it.
type Type string

const (
	OrganizationCreated Type = "organization.created"
	OrganizationUpdated Type = "organization.updated"

	AccountCreated         Type = "account.created"
	AccountUpdated         Type = "account.updated"
	AccountContactLinked   Type = "account.contactLinked"
	AccountContactUnlinked Type = "account.contactUnlinked"
	AccountCodeLinked      Type = "account.codeLinked"
	AccountCodeUnlinked    Type = "account.codeUnlinked"

	ContactCreated Type = "contact.created"
	ContactUpdated Type = "contact.updated"

	NoteCreated Type = "note.created"
	NoteUpdated Type = "note.updated"
	NoteDeleted Type = "note.deleted"

	CalendarEventScheduled Type = "calendarEvent.scheduled"
	CalendarEventUpdated   Type = "calendarEvent.updated"
	CalendarEventCompleted Type = "calendarEvent.completed"
	CalendarEventCanceled  Type = "calendarEvent.canceled"
	CalendarEventDeleted   Type = "calendarEvent.deleted"

	CodeCreated Type = "code.created"
	CodeUpdated Type = "code.updated"

	EntityLinkCreated  Type = "entityLink.created"
	EntityLinkDeleted  Type = "entityLink.deleted"
	EntityLinkMigrated Type = "entityLink.migrated"

	// Legacy types. Still folded so historical logs replay.
	InteractionCreated Type = "interaction.created"
	InteractionUpdated Type = "interaction.updated"
	AuditCreated       Type = "audit.created"
	AuditUpdated       Type = "audit.updated"
)

var allTypes = []Type{
	OrganizationCreated, OrganizationUpdated,
	AccountCreated, AccountUpdated, AccountContactLinked, AccountContactUnlinked,
	AccountCodeLinked, AccountCodeUnlinked,
	ContactCreated, ContactUpdated,
	NoteCreated, NoteUpdated, NoteDeleted,
	CalendarEventScheduled, CalendarEventUpdated, CalendarEventCompleted,
	CalendarEventCanceled, CalendarEventDeleted,
	CodeCreated, CodeUpdated,
	EntityLinkCreated, EntityLinkDeleted, EntityLinkMigrated,
	InteractionCreated, InteractionUpdated, AuditCreated, AuditUpdated,
}

// Types returns the closed set of event types.
func Types() []Type {
	return slices.Clone(allTypes)
}

// Known reports whether t is a member of the enumeration.
func (t Type) Known() bool {
	return slices.Contains(allTypes, t)
}

// Prefix returns the entity part of the type, e.g. "note" for note.created.
func (t Type) Prefix() string {
	prefix, _, _ := strings.Cut(string(t), ".")
	return prefix
}

// Action returns the part after the dot, e.g. "created".
func (t Type) Action() string {
	_, action, _ := strings.Cut(string(t), ".")
	return action
}

func (t Type) String() string { return string(t) }
