package document

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
)

var structValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CheckStruct runs the struct tag rules on a single entity value.
func CheckStruct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		parts := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return errs.Validation("%s", strings.Join(parts, "; "))
	}
	return errs.Validation("%v", err)
}

// CheckCalendarEvent enforces the status and audit invariants.
func CheckCalendarEvent(ce CalendarEvent) error {
	if err := CheckStruct(ce); err != nil {
		return err
	}
	if ce.Status == StatusCompleted && ce.OccurredAt == "" {
		return errs.Validation("calendar event %q is completed without occurredAt", ce.ID)
	}
	if ce.Status != StatusCompleted && ce.OccurredAt != "" {
		return errs.Validation("calendar event %q has occurredAt but status %s", ce.ID, ce.Status)
	}
	if ce.AuditData != nil && ce.Type != CalendarAudit {
		return errs.Validation("calendar event %q carries auditData but type %s", ce.ID, ce.Type)
	}
	return nil
}

// CheckEntityLink enforces that exactly one source id is set and that it
// matches the link type.
func CheckEntityLink(l EntityLink) error {
	if err := CheckStruct(l); err != nil {
		return err
	}
	set := 0
	for _, id := range []string{l.NoteID, l.InteractionID, l.CalendarEventID} {
		if id != "" {
			set++
		}
	}
	if _, src := l.Source(); set != 1 || src == "" {
		return errs.Validation("entity link %q must set exactly the %sId source", l.ID, l.LinkType)
	}
	return nil
}

// Validate checks every entity in the document. Referential integrity of
// links is not checked here: legacy data may hold dangling links that the
// migration report surfaces.
func (d *Document) Validate() error {
	if err := validateSection(d.Organizations, checkStruct[Organization]); err != nil {
		return err
	}
	if err := validateSection(d.Accounts, checkStruct[Account]); err != nil {
		return err
	}
	if err := validateSection(d.Contacts, checkStruct[Contact]); err != nil {
		return err
	}
	if err := validateSection(d.Notes, checkStruct[Note]); err != nil {
		return err
	}
	if err := validateSection(d.CalendarEvents, CheckCalendarEvent); err != nil {
		return err
	}
	if err := validateSection(d.Codes, checkStruct[Code]); err != nil {
		return err
	}
	if err := validateSection(d.Interactions, checkStruct[Interaction]); err != nil {
		return err
	}
	if err := validateSection(d.Audits, checkStruct[Audit]); err != nil {
		return err
	}
	if err := validateSection(d.Relations.EntityLinks, CheckEntityLink); err != nil {
		return err
	}
	for key, e := range d.Relations.AccountContacts {
		if e.Present && key != PairKey(e.Value.AccountID, e.Value.ContactID) {
			return errs.Validation("account contact %q keyed inconsistently", key)
		}
	}
	for key, e := range d.Relations.AccountCodes {
		if e.Present && key != PairKey(e.Value.AccountID, e.Value.CodeID) {
			return errs.Validation("account code %q keyed inconsistently", key)
		}
	}
	return nil
}

func checkStruct[T any](v T) error { return CheckStruct(v) }

func validateSection[T any](m map[string]Entry[T], check func(T) error) error {
	for id, e := range m {
		if err := check(e.Value); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		if got := reflect.ValueOf(e.Value).FieldByName("ID").String(); got != id {
			return errs.Validation("entry %q holds id %q", id, got)
		}
	}
	return nil
}
