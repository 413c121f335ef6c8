// Package migration folds legacy Interaction and Audit records into
// calendar events and retargets the entity links that pointed at them.
//
// The runner executes after every load. It emits synthetic events with
// content-derived ids and historical timestamps, so the rewrite becomes part
// of the log, replays in place, and is derived identically on every device.
package migration

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/replay"
)

// Appender persists synthetic events. Stores that also implement
// replay.BatchAppender persist each record's events atomically.
type Appender = replay.Appender

// Report summarizes one run.
type Report struct {
	MigratedInteractions int      `json:"migratedInteractions"`
	MigratedAudits       int      `json:"migratedAudits"`
	MigratedLinks        int      `json:"migratedLinks"`
	InteractionIDs       []string `json:"interactionIds"`
	AuditIDs             []string `json:"auditIds"`
	LinkIDs              []string `json:"linkIds"`
	Errors               []string `json:"errors"`

	// Failures holds the typed errors behind Errors.
	Failures []error `json:"-"`

	// Events are the synthetic events emitted, in emission order.
	Events []event.Event `json:"-"`
}

// Migrated is the total number of records and links rewritten.
func (r *Report) Migrated() int {
	return r.MigratedInteractions + r.MigratedAudits + r.MigratedLinks
}

func (r *Report) fail(err error) {
	r.Failures = append(r.Failures, err)
	r.Errors = append(r.Errors, err.Error())
}

// Runner performs the migration.
type Runner struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func NewRunner(d *dispatch.Dispatcher, opts ...Option) *Runner {
	r := &Runner{dispatcher: d, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run migrates doc and returns the new document and a report. Failures of
// single records land in the report; Run itself only fails when ctx is done.
// A nil appender skips persistence.
func (r *Runner) Run(ctx context.Context, doc *document.Document, app Appender, deviceID string) (*document.Document, *Report, error) {
	rep := &Report{
		InteractionIDs: []string{},
		AuditIDs:       []string{},
		LinkIDs:        []string{},
		Errors:         []string{},
	}

	for _, id := range slices.Sorted(maps.Keys(doc.Interactions)) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		in := doc.Interactions[id].Value
		if !pending(doc, id) {
			continue
		}
		next, err := r.commit(ctx, doc, app, document.KindInteraction, id, recordEvents(document.CalendarEventFromInteraction(in), deviceID))
		if err != nil {
			rep.fail(err)
			continue
		}
		doc = next.doc
		rep.Events = append(rep.Events, next.events...)
		rep.MigratedInteractions++
		rep.InteractionIDs = append(rep.InteractionIDs, id)
		r.metrics.RecordMigrated(string(document.KindInteraction))
	}

	for _, id := range slices.Sorted(maps.Keys(doc.Audits)) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		a := doc.Audits[id].Value
		if collides(doc, id) {
			r.logger.Warn("legacy audit not migrated", zap.String("id", id), zap.String("reason", "id collision"))
			rep.fail(errs.MigrationRecord(string(document.KindAudit), id,
				fmt.Errorf("id collision: interaction %q maps to the same calendar event", id)))
			continue
		}
		if !pending(doc, id) {
			continue
		}
		next, err := r.commit(ctx, doc, app, document.KindAudit, id, recordEvents(document.CalendarEventFromAudit(a), deviceID))
		if err != nil {
			rep.fail(err)
			continue
		}
		doc = next.doc
		rep.Events = append(rep.Events, next.events...)
		rep.MigratedAudits++
		rep.AuditIDs = append(rep.AuditIDs, id)
		r.metrics.RecordMigrated(string(document.KindAudit))
	}

	for _, link := range doc.Links() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if link.LinkType != document.LinkInteraction {
			continue
		}
		target, ok := doc.CalendarEvents[link.InteractionID]
		if !ok {
			rep.fail(errs.MigrationRecord(string(document.KindEntityLink), link.ID,
				fmt.Errorf("dangling reference: calendar event %q does not exist", link.InteractionID)))
			continue
		}
		next, err := r.commit(ctx, doc, app, document.KindEntityLink, link.ID, []event.Event{linkEvent(link, target, deviceID)})
		if err != nil {
			rep.fail(err)
			continue
		}
		doc = next.doc
		rep.Events = append(rep.Events, next.events...)
		rep.MigratedLinks++
		rep.LinkIDs = append(rep.LinkIDs, link.ID)
		r.metrics.RecordMigrated(string(document.KindEntityLink))
	}

	if rep.Migrated() > 0 || len(rep.Errors) > 0 {
		r.logger.Info("migration finished",
			zap.Int("interactions", rep.MigratedInteractions),
			zap.Int("audits", rep.MigratedAudits),
			zap.Int("links", rep.MigratedLinks),
			zap.Int("errors", len(rep.Errors)),
		)
	}
	return doc, rep, nil
}

// pending reports whether the legacy record id still needs a calendar event.
// A deleted calendar event counts as migrated.
func pending(doc *document.Document, id string) bool {
	return !doc.Has(document.KindCalendarEvent, id) && !doc.Tombstoned(document.KindCalendarEvent, id)
}

// collides reports whether an audit id is also an interaction id. Both
// migrate to a calendar event with the record's id; the interaction wins.
func collides(doc *document.Document, auditID string) bool {
	_, ok := doc.Interactions[auditID]
	return ok
}

type committed struct {
	doc    *document.Document
	events []event.Event
}

// commit folds one record's events and persists them in one append.
// Nothing is kept unless every step succeeds.
func (r *Runner) commit(ctx context.Context, doc *document.Document, app Appender, kind document.Kind, id string, events []event.Event) (committed, error) {
	next, err := r.dispatcher.Dispatch(doc, events)
	if err != nil {
		r.logger.Warn("legacy record not migrated", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return committed{}, errs.MigrationRecord(string(kind), id, err)
	}
	if app != nil {
		if err := replay.AppendAll(ctx, app, events); err != nil {
			r.logger.Warn("synthetic events not persisted", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
			return committed{}, errs.MigrationRecord(string(kind), id, err)
		}
	}
	return committed{doc: next, events: events}, nil
}

// syntheticID is the id of the n-th synthetic event for calendar event id.
// The prefix sorts after uuid and ulid ids at equal timestamps, and the
// shared base keeps one record's events in emission order.
func syntheticID(calendarID string, suffix string) string {
	return "mig-" + ir.MigrationKey(string(document.KindCalendarEvent), calendarID) + "-" + suffix
}

// recordEvents synthesizes the scheduled event, dated at the record's
// creation, and the completed or canceled follow-up.
func recordEvents(ce document.CalendarEvent, deviceID string) []event.Event {
	scheduledAt := ce.CreatedAt
	events := []event.Event{{
		ID:       syntheticID(ce.ID, "1-scheduled"),
		Type:     event.CalendarEventScheduled,
		EntityID: ce.ID,
		Payload: &event.CalendarEventScheduledPayload{
			Type:            ce.Type,
			Summary:         ce.Summary,
			Description:     ce.Description,
			ScheduledFor:    ce.ScheduledFor,
			DurationMinutes: ce.DurationMinutes,
			Location:        ce.Location,
			RecurrenceRule:  ce.RecurrenceRule,
			AuditData:       ce.AuditData,
		},
		Timestamp: scheduledAt,
		DeviceID:  deviceID,
	}}

	switch ce.Status {
	case document.StatusCompleted:
		events = append(events, event.Event{
			ID:        syntheticID(ce.ID, "2-completed"),
			Type:      event.CalendarEventCompleted,
			EntityID:  ce.ID,
			Payload:   &event.CalendarEventCompletedPayload{OccurredAt: ce.OccurredAt},
			Timestamp: document.LaterTime(ce.OccurredAt, scheduledAt),
			DeviceID:  deviceID,
		})
	case document.StatusCanceled:
		events = append(events, event.Event{
			ID:        syntheticID(ce.ID, "2-canceled"),
			Type:      event.CalendarEventCanceled,
			EntityID:  ce.ID,
			Payload:   &event.CalendarEventCanceledPayload{},
			Timestamp: document.LaterTime(ce.UpdatedAt, scheduledAt),
			DeviceID:  deviceID,
		})
	}
	return events
}

// linkEvent retargets link at the calendar event that replaced its
// interaction. It is dated no earlier than the link and the calendar event.
func linkEvent(link document.EntityLink, target document.Entry[document.CalendarEvent], deviceID string) event.Event {
	return event.Event{
		ID:        syntheticID(target.Value.ID, "3-link-"+link.ID),
		Type:      event.EntityLinkMigrated,
		EntityID:  link.ID,
		Payload:   &event.EntityLinkMigratedPayload{CalendarEventID: target.Value.ID},
		Timestamp: document.LaterTime(link.CreatedAt, target.Clock.Created.At),
		DeviceID:  deviceID,
	}
}


// Issue is one finding of ValidateMigration.
type Issue struct {
	Kind    document.Kind `json:"kind"`
	ID      string        `json:"id"`
	Problem string        `json:"problem"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Kind, i.ID, i.Problem)
}

// ValidateMigration lists legacy records without a calendar event, audits
// whose id is taken by an interaction, links still pointing at interactions
// and calendar-event links whose target is missing. It never modifies doc.
func ValidateMigration(doc *document.Document) []Issue {
	var issues []Issue
	for _, id := range slices.Sorted(maps.Keys(doc.Interactions)) {
		if pending(doc, id) {
			issues = append(issues, Issue{document.KindInteraction, id, "no calendar event"})
		}
	}
	for _, id := range slices.Sorted(maps.Keys(doc.Audits)) {
		switch {
		case collides(doc, id):
			issues = append(issues, Issue{document.KindAudit, id, "id collides with interaction " + id})
		case pending(doc, id):
			issues = append(issues, Issue{document.KindAudit, id, "no calendar event"})
		}
	}
	for _, l := range doc.Links() {
		switch l.LinkType {
		case document.LinkInteraction:
			issues = append(issues, Issue{document.KindEntityLink, l.ID, "still links interaction " + l.InteractionID})
		case document.LinkCalendarEvent:
			if !doc.Has(document.KindCalendarEvent, l.CalendarEventID) {
				issues = append(issues, Issue{document.KindEntityLink, l.ID, "calendar event " + l.CalendarEventID + " does not exist"})
			}
		}
	}
	return issues
}
