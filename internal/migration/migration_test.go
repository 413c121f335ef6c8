package migration

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/ir"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/replay"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

func newRunner(opts ...Option) *Runner {
	return NewRunner(dispatch.New(reducer.Default(), event.MustSchema()), opts...)
}

func build(t *testing.T, events ...event.Event) *document.Document {
	t.Helper()
	doc, err := reducer.Default().FoldAll(document.New(), events)
	require.NoError(t, err)
	return doc
}

func TestInteractionScenario(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t,
		b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call", OccurredAt: "2024-01-01T10:00:00Z"}),
	)

	out, rep, err := newRunner().Run(context.Background(), doc, nil, "d1")
	require.NoError(t, err)

	ce, ok := out.CalendarEvent("i1")
	require.True(t, ok)
	assert.Equal(t, document.StatusCompleted, ce.Status)
	assert.Equal(t, document.CalendarCall, ce.Type)
	assert.Equal(t, "2024-01-01T10:00:00Z", ce.OccurredAt)

	assert.Equal(t, 1, rep.MigratedInteractions)
	assert.Equal(t, []string{"i1"}, rep.InteractionIDs)
	require.Len(t, rep.Events, 2)
	assert.Equal(t, event.CalendarEventScheduled, rep.Events[0].Type)
	assert.Equal(t, "2024-01-01T09:00:00Z", rep.Events[0].Timestamp)
	assert.Equal(t, event.CalendarEventCompleted, rep.Events[1].Type)
	assert.Equal(t, "2024-01-01T10:00:00Z", rep.Events[1].Timestamp)
	assert.Equal(t, "d1", rep.Events[1].DeviceID)

	// The legacy record is kept for history.
	assert.True(t, out.Has(document.KindInteraction, "i1"))
	assert.Empty(t, doc.CalendarEvents, "input document is not modified")
}

func TestMigrationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	doc := build(t, legacyFixture()...)
	r := newRunner()

	once, rep1, err := r.Run(ctx, doc, nil, "d1")
	require.NoError(t, err)
	assert.Equal(t, 4, rep1.Migrated())

	twice, rep2, err := r.Run(ctx, once, nil, "d1")
	require.NoError(t, err)
	assert.Zero(t, rep2.Migrated())
	assert.Empty(t, rep2.Events)
	assert.Empty(t, rep2.Errors)

	h1, err := once.Hash()
	require.NoError(t, err)
	h2, err := twice.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Empty(t, ValidateMigration(twice))
}

func TestSyntheticEventsAreStableAcrossDevices(t *testing.T) {
	ctx := context.Background()
	doc := build(t, legacyFixture()...)

	_, a, err := newRunner().Run(ctx, doc, nil, "device-a")
	require.NoError(t, err)
	_, b, err := newRunner().Run(ctx, doc, nil, "device-b")
	require.NoError(t, err)

	require.Equal(t, len(a.Events), len(b.Events))
	for i := range a.Events {
		assert.Equal(t, a.Events[i].ID, b.Events[i].ID)
		assert.True(t, strings.HasPrefix(a.Events[i].ID, "mig-"), a.Events[i].ID)
	}
	assert.Equal(t, "mig-"+ir.MigrationKey("calendarEvent", "i1")+"-1-scheduled", a.Events[0].ID)
}

func TestMigratedLogReplaysToSameDocument(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	store.AppendAll(legacyFixture()...)

	ld := replay.NewLoader(dispatch.New(reducer.Default(), nil))
	doc, _, err := ld.Load(ctx, store)
	require.NoError(t, err)

	migrated, rep, err := newRunner().Run(ctx, doc, store, "d1")
	require.NoError(t, err)
	require.NotEmpty(t, rep.Events)
	assert.Equal(t, len(legacyFixture())+len(rep.Events), store.EventCount())

	replayed, _, err := ld.Load(ctx, store)
	require.NoError(t, err)
	want, err := migrated.Hash()
	require.NoError(t, err)
	got, err := replayed.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, again, err := newRunner().Run(ctx, replayed, store, "d1")
	require.NoError(t, err)
	assert.Zero(t, again.Migrated())
}

func TestFailedRecordDoesNotBlockOthers(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t,
		b.At("2024-01-01T08:00:00Z", "p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.At("2024-01-01T09:00:00Z", "bad", &event.InteractionCreatedPayload{Type: "email", ScheduledFor: "next week"}),
		b.At("2024-01-01T09:05:00Z", "good", &event.InteractionCreatedPayload{Type: "meeting"}),
		b.At("2024-01-01T09:10:00Z", "l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkInteraction, InteractionID: "bad", EntityType: document.KindContact, EntityID: "p1"}),
	)
	m := metrics.New()

	out, rep, err := newRunner(WithMetrics(m)).Run(context.Background(), doc, nil, "d1")
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, rep.InteractionIDs)
	assert.True(t, out.Has(document.KindCalendarEvent, "good"))
	assert.False(t, out.Has(document.KindCalendarEvent, "bad"))

	require.Len(t, rep.Failures, 2)
	assert.True(t, errs.Is(rep.Failures[0], errs.CodeMigrationRecord))
	assert.Contains(t, rep.Errors[0], `interaction "bad"`)
	assert.Contains(t, rep.Errors[1], "dangling reference")

	l, _ := out.Link("l1")
	assert.Equal(t, document.LinkInteraction, l.LinkType, "dangling link is left untouched")

	issues := ValidateMigration(out)
	require.Len(t, issues, 2)
	assert.Equal(t, Issue{document.KindInteraction, "bad", "no calendar event"}, issues[0])
	assert.Equal(t, document.KindEntityLink, issues[1].Kind)

	s, err := m.Summarize()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"interaction": 1}, s.MigratedRecords)
}

type failingAppender struct{ calls int }

func (f *failingAppender) AppendEvent(context.Context, event.Record) error {
	f.calls++
	return errors.New("disk full")
}

func TestAppendFailureKeepsRecordPending(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t, b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call"}))

	app := &failingAppender{}
	out, rep, err := newRunner().Run(context.Background(), doc, app, "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, app.calls)
	assert.Zero(t, rep.Migrated())
	require.Len(t, rep.Errors, 1)
	assert.Contains(t, rep.Errors[0], "disk full")
	assert.False(t, out.Has(document.KindCalendarEvent, "i1"))
}

func TestDeletedCalendarEventIsNotRecreated(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t,
		b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call"}),
		b.At("2024-01-01T09:01:00Z", "i1", &event.CalendarEventScheduledPayload{Type: document.CalendarCall, Summary: "call", ScheduledFor: "2024-01-01T09:00:00Z"}),
		b.At("2024-01-01T09:02:00Z", "i1", &event.CalendarEventDeletedPayload{}),
	)

	_, rep, err := newRunner().Run(context.Background(), doc, nil, "d1")
	require.NoError(t, err)
	assert.Zero(t, rep.Migrated())
	assert.Empty(t, rep.Errors)
	assert.Empty(t, ValidateMigration(doc))
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := build(t, legacyFixture()...)

	_, _, err := newRunner().Run(ctx, doc, nil, "d1")
	assert.ErrorIs(t, err, context.Canceled)
}

func legacyFixture() []event.Event {
	b := testutil.NewEventBuilder("legacy")
	score := decimal.RequireFromString("4.5")
	return []event.Event{
		b.At("2024-01-01T08:00:00Z", "p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call", OccurredAt: "2024-01-01T10:00:00Z", ContactID: "p1"}),
		b.At("2024-01-01T09:30:00Z", "l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkInteraction, InteractionID: "i1", EntityType: document.KindContact, EntityID: "p1"}),
		b.At("2024-01-02T09:00:00Z", "i2", &event.InteractionCreatedPayload{Type: "meeting", Summary: "Kickoff", ScheduledFor: "2024-01-05T15:00:00Z", Status: "canceled"}),
		b.At("2024-01-03T09:00:00Z", "au1", &event.AuditCreatedPayload{AccountID: "a1", Score: &score, OccurredAt: "2024-01-03T12:00:00Z"}),
	}
}

type goldenEvent struct {
	Type      string          `json:"type"`
	EntityID  string          `json:"entityId"`
	Timestamp string          `json:"timestamp"`
	DeviceID  string          `json:"deviceId"`
	Payload   json.RawMessage `json:"payload"`
}

type goldenReport struct {
	*Report
	Events []goldenEvent `json:"events"`
}

func TestReportGolden(t *testing.T) {
	doc := build(t, legacyFixture()...)
	_, rep, err := newRunner().Run(context.Background(), doc, nil, "golden-device")
	require.NoError(t, err)

	view := goldenReport{Report: rep, Events: []goldenEvent{}}
	for _, e := range rep.Events {
		payload, err := ir.MarshalCanonical(e.Payload)
		require.NoError(t, err)
		view.Events = append(view.Events, goldenEvent{
			Type:      string(e.Type),
			EntityID:  e.EntityID,
			Timestamp: e.Timestamp,
			DeviceID:  e.DeviceID,
			Payload:   payload,
		})
	}
	data, err := json.MarshalIndent(view, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "legacy_report", append(data, '\n'))
}

func TestAuditCollidingWithInteractionIsReported(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t,
		b.At("2024-01-01T09:00:00Z", "x1", &event.InteractionCreatedPayload{Type: "call"}),
		b.At("2024-01-01T09:05:00Z", "x1", &event.AuditCreatedPayload{AccountID: "a1"}),
	)

	out, rep, err := newRunner().Run(context.Background(), doc, nil, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x1"}, rep.InteractionIDs)
	assert.Empty(t, rep.AuditIDs)
	require.Len(t, rep.Failures, 1)
	assert.True(t, errs.Is(rep.Failures[0], errs.CodeMigrationRecord))
	assert.Contains(t, rep.Errors[0], "id collision")

	ce, ok := out.CalendarEvent("x1")
	require.True(t, ok)
	assert.Equal(t, document.CalendarCall, ce.Type)

	assert.Equal(t, []Issue{{document.KindAudit, "x1", "id collides with interaction x1"}}, ValidateMigration(out))
}

// batchAppender records each AppendEvents call and fails every call once
// failAt records have been written.
type batchAppender struct {
	batches [][]string
	written int
	failAt  int
}

func (a *batchAppender) AppendEvent(context.Context, event.Record) error {
	return errors.New("single append not expected")
}

func (a *batchAppender) AppendEvents(_ context.Context, recs []event.Record) error {
	if a.failAt > 0 && a.written+len(recs) > a.failAt {
		return errors.New("disk full")
	}
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	a.batches = append(a.batches, ids)
	a.written += len(recs)
	return nil
}

func TestRecordEventsAreAppendedTogether(t *testing.T) {
	doc := build(t, legacyFixture()...)
	app := &batchAppender{}

	_, rep, err := newRunner().Run(context.Background(), doc, app, "d1")
	require.NoError(t, err)
	require.Empty(t, rep.Errors)

	// i1 completed, i2 canceled, au1 completed, then the l1 link.
	require.Len(t, app.batches, 4)
	assert.Len(t, app.batches[0], 2)
	assert.Len(t, app.batches[1], 2)
	assert.Len(t, app.batches[2], 2)
	assert.Len(t, app.batches[3], 1)
	assert.Equal(t, len(rep.Events), app.written)
}

func TestFailedBatchLeavesRecordUnmigrated(t *testing.T) {
	doc := build(t, legacyFixture()...)
	app := &batchAppender{failAt: 2}

	out, rep, err := newRunner().Run(context.Background(), doc, app, "d1")
	require.NoError(t, err)

	assert.Equal(t, []string{"i1"}, rep.InteractionIDs)
	assert.Equal(t, 2, app.written, "nothing of the failed records was written")
	assert.False(t, out.Has(document.KindCalendarEvent, "i2"))
	assert.False(t, out.Has(document.KindCalendarEvent, "au1"))
	assert.Contains(t, strings.Join(rep.Errors, "\n"), "disk full")
}

func TestMixedLegacyTimestampForms(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	doc := build(t,
		b.At("2024-01-01T09:00:00.250Z", "i1", &event.InteractionCreatedPayload{Type: "call", OccurredAt: "2024-01-01T09:00:00Z"}),
		b.At("2024-01-01T12:00:00+02:00", "i2", &event.InteractionCreatedPayload{Type: "email", OccurredAt: "2024-01-01T10:30:00Z"}),
	)

	_, rep, err := newRunner().Run(context.Background(), doc, nil, "d1")
	require.NoError(t, err)
	require.Len(t, rep.Events, 4)

	// Completion is never dated before scheduling.
	assert.Equal(t, "2024-01-01T09:00:00.250Z", rep.Events[1].Timestamp)
	assert.Equal(t, "2024-01-01T10:30:00Z", rep.Events[3].Timestamp)

	log := slices.Clone(rep.Events)
	event.Sort(log)
	assert.Equal(t, event.CalendarEventScheduled, log[0].Type)
	assert.Equal(t, event.CalendarEventCompleted, log[1].Type)
	assert.Equal(t, "i1", log[1].EntityID)
}
