// Package errs defines the coded error taxonomy shared by the dispatcher,
// reducers, loader and migration runner.
package errs

import (
	"errors"
	"fmt"
)

// Code categorizes an error.
type Code string

const (
	// CodeValidation: the event is structurally malformed.
	CodeValidation Code = "VALIDATION"

	// CodeUnknownEventType: no reducer handles the event type.
	CodeUnknownEventType Code = "UNKNOWN_EVENT_TYPE"

	// CodeNotFound: an update or delete referenced a missing entity.
	CodeNotFound Code = "NOT_FOUND"

	// CodeAlreadyExists: a create referenced an existing id.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeMigrationRecord: a single legacy record failed to migrate.
	CodeMigrationRecord Code = "MIGRATION_RECORD"

	// CodeLoad: persistence read or decode failed during load.
	CodeLoad Code = "LOAD"
)

// Error is the single error type of the core. Optional fields identify the
// event or entity the failure relates to.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	EventID   string `json:"eventId,omitempty"`
	EventType string `json:"eventType,omitempty"`

	// Kind and EntityID identify the entity for NotFound, AlreadyExists and
	// MigrationRecord errors.
	Kind     string `json:"kind,omitempty"`
	EntityID string `json:"entityId,omitempty"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.EventID != "" {
		msg += fmt.Sprintf(" (event=%s)", e.EventID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// WithEvent returns a copy of e annotated with the event that triggered it.
// Existing annotations are kept.
func (e *Error) WithEvent(id, eventType string) *Error {
	out := *e
	if out.EventID == "" {
		out.EventID = id
	}
	if out.EventType == "" {
		out.EventType = eventType
	}
	return &out
}

// Validation reports a structurally malformed event or record.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// UnknownEventType reports an event type no reducer handles.
func UnknownEventType(eventType string) *Error {
	return &Error{
		Code:      CodeUnknownEventType,
		Message:   fmt.Sprintf("no reducer registered for %q", eventType),
		EventType: eventType,
	}
}

// NotFound reports a missing entity.
func NotFound(kind, id string) *Error {
	return &Error{
		Code:     CodeNotFound,
		Message:  fmt.Sprintf("%s %q not found", kind, id),
		Kind:     kind,
		EntityID: id,
	}
}

// AlreadyExists reports a create against an existing or tombstoned id.
func AlreadyExists(kind, id string) *Error {
	return &Error{
		Code:     CodeAlreadyExists,
		Message:  fmt.Sprintf("%s %q already exists", kind, id),
		Kind:     kind,
		EntityID: id,
	}
}

// MigrationRecord reports one legacy record that could not be migrated.
func MigrationRecord(kind, id string, cause error) *Error {
	return &Error{
		Code:     CodeMigrationRecord,
		Message:  fmt.Sprintf("migrate %s %q", kind, id),
		Kind:     kind,
		EntityID: id,
		Err:      cause,
	}
}

// Load reports a persistence failure while loading the document.
func Load(message string, cause error) *Error {
	return &Error{Code: CodeLoad, Message: message, Err: cause}
}

// Is reports whether err, or any error it wraps, carries code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
