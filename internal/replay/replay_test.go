package replay

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/dispatch"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/logging"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/metrics"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

func newLoader(opts ...Option) *Loader {
	return NewLoader(dispatch.New(reducer.Default(), nil), opts...)
}

func sampleLog(b *testutil.EventBuilder) []event.Event {
	return []event.Event{
		b.Event("o1", &event.OrganizationCreatedPayload{Name: "Acme"}),
		b.Event("p1", &event.ContactCreatedPayload{FirstName: "Ada", OrganizationID: "o1"}),
		b.Event("n1", &event.NoteCreatedPayload{Body: "first"}),
		b.Event("l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkNote, NoteID: "n1", EntityType: document.KindContact, EntityID: "p1"}),
		b.Event("n1", &event.NoteUpdatedPayload{Body: testutil.Ptr("second")}),
		b.Event("c1", &event.CalendarEventScheduledPayload{Type: document.CalendarCall, Summary: "Call", ScheduledFor: "2024-03-01T10:00:00Z"}),
		b.Event("c1", &event.CalendarEventCompletedPayload{}),
	}
}

func hash(t *testing.T, doc *document.Document) string {
	t.Helper()
	h, err := doc.Hash()
	require.NoError(t, err)
	return h
}

func TestLoadEmptyStore(t *testing.T) {
	doc, events, err := newLoader().Load(context.Background(), testutil.NewMemoryStore())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, hash(t, document.New()), hash(t, doc))
}

func TestLoadFoldsInTimestampOrder(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	log := sampleLog(b)

	store := testutil.NewMemoryStore()
	// Persist in reverse to prove the loader sorts.
	for i := len(log) - 1; i >= 0; i-- {
		store.AppendAll(log[i])
	}

	doc, events, err := newLoader().Load(context.Background(), store)
	require.NoError(t, err)
	require.Len(t, events, len(log))
	for i := range log {
		assert.Equal(t, log[i].ID, events[i].ID)
	}

	want, err := reducer.Default().FoldAll(document.New(), log)
	require.NoError(t, err)
	assert.Equal(t, hash(t, want), hash(t, doc))

	n, _ := doc.Note("n1")
	assert.Equal(t, "second", n.Body)
}

func TestLoadIsDeterministic(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	store := testutil.NewMemoryStore()
	store.AppendAll(sampleLog(b)...)

	ld := newLoader()
	first, _, err := ld.Load(context.Background(), store)
	require.NoError(t, err)
	second, _, err := ld.Load(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, hash(t, first), hash(t, second))
}

func TestSnapshotEquivalence(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewEventBuilder("d1")
	log := sampleLog(b)

	for cut := 0; cut <= len(log); cut++ {
		store := testutil.NewMemoryStore()
		store.AppendAll(log...)

		if cut > 0 {
			prefix, err := reducer.Default().FoldAll(document.New(), log[:cut])
			require.NoError(t, err)
			require.NoError(t, store.WriteSnapshot(ctx, prefix, log[cut-1].Timestamp))
		}

		ld := newLoader()
		st, err := ld.LoadState(ctx, store)
		require.NoError(t, err)
		full, err := ld.Rebuild(ctx, store)
		require.NoError(t, err)

		assert.Equal(t, hash(t, full.Document), hash(t, st.Document), "cut at %d", cut)
		assert.Equal(t, len(log)-cut, st.Folded)
		assert.Len(t, st.Events, len(log))
	}
}

func TestSnapshotWithoutLaterEvents(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewEventBuilder("d1")
	log := sampleLog(b)

	snap, err := reducer.Default().FoldAll(document.New(), log)
	require.NoError(t, err)

	store := testutil.NewMemoryStore()
	require.NoError(t, store.WriteSnapshot(ctx, snap, log[len(log)-1].Timestamp))

	doc, events, err := newLoader().Load(ctx, store)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, hash(t, snap), hash(t, doc))
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewEventBuilder("d1")

	tests := []struct {
		name  string
		setup func(*testutil.MemoryStore)
	}{
		{"read failure", func(s *testutil.MemoryStore) { s.ReadErr = errors.New("disk gone") }},
		{"corrupt snapshot", func(s *testutil.MemoryStore) {
			s.PutRawSnapshot(event.SnapshotRecord{Doc: "{not json", Timestamp: "2024-01-01T00:00:00Z"})
		}},
		{"invalid snapshot", func(s *testutil.MemoryStore) {
			s.PutRawSnapshot(event.SnapshotRecord{Doc: `{"notes":{"n1":{"value":{"id":"n1"}}}}`, Timestamp: "2024-01-01T00:00:00Z"})
		}},
		{"undecodable payload", func(s *testutil.MemoryStore) {
			require.NoError(t, s.AppendEvent(ctx, event.Record{ID: "x1", Type: "note.created", Payload: "[1,2]", Timestamp: "2024-01-01T00:00:00Z"}))
		}},
		{"unknown type", func(s *testutil.MemoryStore) {
			require.NoError(t, s.AppendEvent(ctx, event.Record{ID: "x2", Type: "meeting.created", Payload: "{}", Timestamp: "2024-01-01T00:00:00Z"}))
		}},
		{"fold failure", func(s *testutil.MemoryStore) {
			s.AppendAll(b.Event("n1", &event.NoteDeletedPayload{}))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewMemoryStore()
			tt.setup(store)

			_, _, err := newLoader().Load(ctx, store)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.CodeLoad), "got %v", err)
		})
	}
}

func TestLoadRestoresLogLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, atom := logging.NewWriter(&buf, zapcore.DebugLevel)
	m := metrics.New()

	b := testutil.NewEventBuilder("d1")
	store := testutil.NewMemoryStore()
	store.AppendAll(sampleLog(b)...)

	d := dispatch.New(reducer.Default(), nil, dispatch.WithLogger(logger))
	ld := NewLoader(d, WithLogger(logger), WithLevel(atom), WithMetrics(m))
	_, _, err := ld.Load(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, zapcore.DebugLevel, atom.Level())
	assert.NotContains(t, buf.String(), "event folded", "per-event logging is suppressed during replay")
	assert.Contains(t, buf.String(), "document loaded")

	s, err := m.Summarize()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Replays)
}

func TestAfter(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	log := sampleLog(b)
	assert.Len(t, After(log, log[2].Timestamp), len(log)-3)
	assert.Empty(t, After(log, "9999"))
	assert.Len(t, After(log, ""), len(log))
}

func TestAfterComparesInstants(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	log := []event.Event{
		b.At("2024-01-01T09:00:00Z", "n1", &event.NoteCreatedPayload{Body: "a"}),
		b.At("2024-01-01T09:00:00.500Z", "n2", &event.NoteCreatedPayload{Body: "b"}),
		b.At("2024-01-01T12:00:00+02:00", "n3", &event.NoteCreatedPayload{Body: "c"}),
	}
	event.Sort(log)

	rest := After(log, "2024-01-01T09:00:00.000000000Z")
	require.Len(t, rest, 2)
	assert.Equal(t, "n2", rest[0].EntityID)
	assert.Equal(t, "n3", rest[1].EntityID)

	assert.Empty(t, After(log, "2024-01-01T10:00:00.000000000Z"))
}

// singleAppender hides AppendEvents from the wrapped store.
type singleAppender struct{ Appender }

func TestAppendAll(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewEventBuilder("d1")
	batch := []event.Event{
		b.Event("n1", &event.NoteCreatedPayload{Body: "one"}),
		b.Event("n2", &event.NoteCreatedPayload{Body: "two"}),
	}

	t.Run("batch", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		require.NoError(t, AppendAll(ctx, store, batch))
		assert.Equal(t, 2, store.EventCount())

		store.AppendErr = errors.New("disk full")
		err := AppendAll(ctx, store, []event.Event{b.Event("n3", &event.NoteCreatedPayload{Body: "three"})})
		require.Error(t, err)
		assert.Equal(t, 2, store.EventCount())
	})

	t.Run("one at a time", func(t *testing.T) {
		store := testutil.NewMemoryStore()
		require.NoError(t, AppendAll(ctx, singleAppender{store}, batch))
		assert.Equal(t, 2, store.EventCount())
	})
}
