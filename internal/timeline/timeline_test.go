package timeline

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/reducer"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

func fold(t *testing.T, events []event.Event) *document.Document {
	t.Helper()
	sorted := append([]event.Event(nil), events...)
	event.Sort(sorted)
	doc, err := reducer.Default().FoldAll(document.New(), sorted)
	require.NoError(t, err)
	return doc
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestBuildOrdersOutOfOrderInput(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	created := b.At("2024-01-01T09:00:00Z", "p1", &event.ContactCreatedPayload{FirstName: "Ada"})
	t2 := b.At("2024-01-02T09:00:00Z", "p1", &event.ContactUpdatedPayload{Title: testutil.Ptr("CTO")})
	t3 := b.At("2024-01-03T09:00:00Z", "p1", &event.ContactUpdatedPayload{Phone: testutil.Ptr("555")})
	tie := b.At("2024-01-02T09:00:00Z", "p1", &event.ContactUpdatedPayload{LastName: testutil.Ptr("Lovelace")})
	tie.ID = "e0000"

	doc := fold(t, []event.Event{created, t2, t3, tie})
	input := []event.Event{t2, created, t3, tie}

	items := Build(doc, input, document.KindContact, "p1")
	assert.Equal(t, []string{created.ID, "e0000", t2.ID, t3.ID}, ids(items))
	assert.Equal(t, t2.ID, input[0].ID, "input is not reordered")

	again := Build(doc, []event.Event{tie, t3, created, t2}, document.KindContact, "p1")
	assert.Equal(t, ids(items), ids(again))
}

func TestBuildIgnoresOtherEntities(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	events := []event.Event{
		b.Event("p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.Event("p2", &event.ContactCreatedPayload{FirstName: "Bob"}),
		// Same id, different kind.
		b.Event("p1", &event.NoteCreatedPayload{Body: "collides"}),
	}
	doc := fold(t, events)

	items := Build(doc, events, document.KindContact, "p1")
	assert.Equal(t, []string{events[0].ID}, ids(items))
}

func TestBuildIndirectReferences(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	events := []event.Event{
		b.Event("o1", &event.OrganizationCreatedPayload{Name: "Acme"}),
		b.Event("a1", &event.AccountCreatedPayload{Name: "HQ", OrganizationID: "o1"}),
		b.Event("p1", &event.ContactCreatedPayload{FirstName: "Ada", OrganizationID: "o1"}),
		b.Event("p2", &event.ContactCreatedPayload{FirstName: "Bob"}),
	}
	doc := fold(t, events)

	items := Build(doc, events, document.KindOrganization, "o1")
	assert.Equal(t, []string{events[0].ID, events[1].ID, events[2].ID}, ids(items))
}

func TestBuildCalendarEventIncludesItselfAndLegacyHistory(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	events := []event.Event{
		b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call"}),
		b.At("2024-01-01T09:00:00Z", "i1", &event.CalendarEventScheduledPayload{Type: document.CalendarCall, Summary: "call interaction", ScheduledFor: "2024-01-05T09:00:00Z"}),
	}
	doc := fold(t, events)

	items := Build(doc, events, document.KindCalendarEvent, "i1")
	require.Len(t, items, 3)
	assert.Equal(t, ItemEvent, items[0].Kind)
	assert.Equal(t, ItemEvent, items[1].Kind)
	assert.Equal(t, ItemCalendarEvent, items[2].Kind)
	assert.Equal(t, "2024-01-05T09:00:00Z", items[2].Timestamp)
	assert.Empty(t, items[2].LinkID)
}

func TestBuildLinkedItems(t *testing.T) {
	events := goldenEvents()
	doc := fold(t, events)

	items := Build(doc, events, document.KindContact, "p1")

	var notes, calendar []Item
	for _, it := range items {
		switch it.Kind {
		case ItemNote:
			notes = append(notes, it)
		case ItemCalendarEvent:
			calendar = append(calendar, it)
		}
	}
	require.Len(t, notes, 1)
	assert.Equal(t, "l1", notes[0].LinkID)
	require.Len(t, calendar, 2)
	assert.True(t, calendar[0].Legacy)
	assert.Equal(t, document.StatusCompleted, calendar[0].CalendarEvent.Status)
	assert.False(t, calendar[1].Legacy)
}

func TestBuildMigratedInteractionLink(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	events := append(goldenEvents(),
		b.At("2024-01-01T09:20:00Z", "i1", &event.CalendarEventScheduledPayload{Type: document.CalendarMeeting, Summary: "Lunch", ScheduledFor: "2024-01-02T12:00:00Z"}),
		b.At("2024-01-01T09:30:00Z", "l3", &event.EntityLinkMigratedPayload{CalendarEventID: "i1"}),
	)
	events[len(events)-2].ID = "mig-1"
	events[len(events)-1].ID = "mig-2"
	doc := fold(t, events)

	items := Build(doc, events, document.KindContact, "p1")
	for _, it := range items {
		if it.Kind == ItemCalendarEvent && it.ID == "i1" {
			assert.False(t, it.Legacy)
			assert.Equal(t, document.StatusScheduled, it.CalendarEvent.Status)
			return
		}
	}
	t.Fatal("migrated calendar event missing from timeline")
}

func goldenEvents() []event.Event {
	b := testutil.NewEventBuilder("d1")
	return []event.Event{
		b.At("2024-01-01T08:00:00Z", "p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.At("2024-01-01T09:00:00Z", "n1", &event.NoteCreatedPayload{Title: "Kickoff notes", Body: "Agenda\nBudget"}),
		b.At("2024-01-01T09:05:00Z", "l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkNote, NoteID: "n1", EntityType: document.KindContact, EntityID: "p1"}),
		b.At("2024-01-01T09:10:00Z", "c1", &event.CalendarEventScheduledPayload{Type: document.CalendarCall, Summary: "Follow-up call", ScheduledFor: "2024-01-03T15:00:00Z"}),
		b.At("2024-01-01T09:11:00Z", "l2", &event.EntityLinkCreatedPayload{LinkType: document.LinkCalendarEvent, CalendarEventID: "c1", EntityType: document.KindContact, EntityID: "p1"}),
		b.At("2024-01-01T09:20:00Z", "i1", &event.InteractionCreatedPayload{Type: "meeting", Summary: "Lunch", OccurredAt: "2024-01-02T12:00:00Z", ContactID: "p1"}),
		b.At("2024-01-01T09:21:00Z", "l3", &event.EntityLinkCreatedPayload{LinkType: document.LinkInteraction, InteractionID: "i1", EntityType: document.KindContact, EntityID: "p1"}),
		b.At("2024-01-02T10:00:00Z", "p1", &event.ContactUpdatedPayload{Title: testutil.Ptr("CTO")}),
		b.At("2024-01-01T08:00:00Z", "n2", &event.NoteCreatedPayload{Body: "unrelated"}),
	}
}

func TestTimelineGolden(t *testing.T) {
	events := goldenEvents()
	doc := fold(t, events)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Build(doc, events, document.KindContact, "p1")))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "contact_timeline", buf.Bytes())
}
