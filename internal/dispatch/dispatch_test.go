package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/logging"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

func newDispatcher(t *testing.T, opts ...Option) *Dispatcher {
	t.Helper()
	return New(reducer.Default(), event.MustSchema(), opts...)
}

func TestDispatchFoldsInOrder(t *testing.T) {
	m := metrics.New()
	d := newDispatcher(t, WithMetrics(m))
	b := testutil.NewEventBuilder("d1")

	doc, err := d.Dispatch(document.New(), []event.Event{
		b.Event("p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.Event("n1", &event.NoteCreatedPayload{Body: "hi"}),
		b.Event("l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkNote, NoteID: "n1", EntityType: document.KindContact, EntityID: "p1"}),
	})
	require.NoError(t, err)
	assert.Len(t, doc.Links(), 1)

	s, err := m.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 3, s.TotalFolded())
}

func TestDispatchValidatesBeforeFolding(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	good := b.Event("n1", &event.NoteCreatedPayload{Body: "hi"})

	noTimestamp := b.Event("n2", &event.NoteCreatedPayload{Body: "x"})
	noTimestamp.Timestamp = ""

	badSchema := b.Event("p3", &event.ContactCreatedPayload{})

	unknown := b.Event("n4", &event.NoteCreatedPayload{Body: "x"})
	unknown.Type = "note.archived"

	tests := []struct {
		name string
		bad  event.Event
		code errs.Code
	}{
		{"missing timestamp", noTimestamp, errs.CodeValidation},
		{"schema failure", badSchema, errs.CodeValidation},
		{"unknown type", unknown, errs.CodeUnknownEventType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			d := newDispatcher(t, WithMetrics(m))
			doc := document.New()

			_, err := d.Dispatch(doc, []event.Event{good, tt.bad})
			require.Error(t, err)
			assert.Equal(t, tt.code, errs.CodeOf(err))
			assert.Empty(t, doc.Notes)

			s, err := m.Summarize()
			require.NoError(t, err)
			assert.Zero(t, s.TotalFolded(), "nothing is folded when validation fails")
			assert.Equal(t, 1, s.DispatchFailures[string(tt.code)])
		})
	}
}

func TestDispatchUnregisteredPrefix(t *testing.T) {
	reg := reducer.NewRegistry()
	d := New(reg, nil)
	b := testutil.NewEventBuilder("d1")

	_, err := d.Dispatch(document.New(), []event.Event{b.Event("n1", &event.NoteCreatedPayload{Body: "x"})})
	assert.True(t, errs.Is(err, errs.CodeUnknownEventType))
}

func TestDispatchFailFast(t *testing.T) {
	d := newDispatcher(t)
	b := testutil.NewEventBuilder("d1")
	before := document.New()

	_, err := d.Dispatch(before, []event.Event{
		b.Event("n1", &event.NoteCreatedPayload{Body: "one"}),
		b.Event("n9", &event.NoteDeletedPayload{}),
		b.Event("n2", &event.NoteCreatedPayload{Body: "two"}),
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeNotFound))
	assert.Empty(t, before.Notes)
}

func TestRunResult(t *testing.T) {
	d := newDispatcher(t)
	b := testutil.NewEventBuilder("d1")

	ok := d.Run(document.New(), []event.Event{b.Event("n1", &event.NoteCreatedPayload{Body: "x"})})
	assert.True(t, ok.Success)
	require.NotNil(t, ok.Document)
	assert.Nil(t, ok.Error)

	del := b.Event("n1", &event.NoteDeletedPayload{})
	failed := d.Run(document.New(), []event.Event{del})
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Document)
	require.NotNil(t, failed.Error)
	assert.Equal(t, errs.CodeNotFound, failed.Error.Code)
	assert.Equal(t, del.ID, failed.Error.EventID)

	data, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"note \"n1\" not found","eventId":"`+del.ID+`","eventType":"note.deleted","kind":"note","entityId":"n1"}}`, string(data))
}

func TestDispatchLogsRejections(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.NewWriter(&buf, zapcore.InfoLevel)
	d := newDispatcher(t, WithLogger(logger))
	b := testutil.NewEventBuilder("d1")

	_, err := d.Dispatch(document.New(), []event.Event{b.Event("n1", &event.NoteDeletedPayload{})})
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, buf.String(), "dispatch rejected")
}

func TestDispatchLeavesEarlierDocumentsUntouched(t *testing.T) {
	d := newDispatcher(t)
	b := testutil.NewEventBuilder("d1")

	first, err := d.Dispatch(document.New(), []event.Event{
		b.Event("n1", &event.NoteCreatedPayload{Body: "one"}),
		b.Event("n2", &event.NoteCreatedPayload{Body: "two"}),
	})
	require.NoError(t, err)

	second, err := d.Dispatch(first, []event.Event{
		b.Event("n3", &event.NoteCreatedPayload{Body: "three"}),
		b.Event("n1", &event.NoteDeletedPayload{}),
	})
	require.NoError(t, err)
	assert.Len(t, second.Notes, 2)
	assert.True(t, second.Tombstoned(document.KindNote, "n1"))

	_, err = d.Dispatch(second, []event.Event{
		b.Event("n4", &event.NoteCreatedPayload{Body: "four"}),
		b.Event("n2", &event.NoteDeletedPayload{}),
		b.Event("n1", &event.NoteDeletedPayload{}),
	})
	require.Error(t, err)

	assert.Len(t, first.Notes, 2)
	assert.False(t, first.Tombstoned(document.KindNote, "n1"))
	assert.Len(t, second.Notes, 2)
	assert.False(t, second.Has(document.KindNote, "n4"))
	assert.False(t, second.Tombstoned(document.KindNote, "n2"))
}

func noteBatch(n int) []event.Event {
	b := testutil.NewEventBuilder("d1")
	events := make([]event.Event, n)
	for i := range events {
		events[i] = b.Event(fmt.Sprintf("n%d", i), &event.NoteCreatedPayload{Body: "x"})
	}
	return events
}

func TestFoldLargeLog(t *testing.T) {
	if testing.Short() {
		t.Skip("large log")
	}
	d := newDispatcher(t)
	events := noteBatch(50000)

	start := time.Now()
	doc, err := d.Fold(document.New(), events)
	require.NoError(t, err)
	assert.Len(t, doc.Notes, len(events))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func BenchmarkFold(b *testing.B) {
	for _, n := range []int{1000, 10000} {
		events := noteBatch(n)
		d := New(reducer.Default(), nil)
		b.Run(fmt.Sprintf("notes=%d", n), func(b *testing.B) {
			for b.Loop() {
				if _, err := d.Fold(document.New(), events); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
