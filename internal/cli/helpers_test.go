package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/store"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

// testOptions points commands at dbPath with a quiet logger and a fixed
// device id.
func testOptions(t *testing.T, format, dbPath string) *RootOptions {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "orbit.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
log:
  level: error
device:
  id: test-device
snapshot:
  every: 0
`), 0o600))
	return &RootOptions{Format: format, Config: cfg, Database: dbPath}
}

// seedDB creates a SQLite database holding events.
func seedDB(t *testing.T, events ...event.Event) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	for _, e := range events {
		rec, err := e.Record()
		require.NoError(t, err)
		require.NoError(t, st.AppendEvent(context.Background(), rec))
	}
	return dbPath
}

func contactLog(b *testutil.EventBuilder) []event.Event {
	return []event.Event{
		b.Event("p1", &event.ContactCreatedPayload{FirstName: "Ada", LastName: "Lovelace"}),
		b.Event("n1", &event.NoteCreatedPayload{Body: "met at conf"}),
		b.Event("l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkNote, NoteID: "n1", EntityType: document.KindContact, EntityID: "p1"}),
	}
}

func legacyLog(b *testutil.EventBuilder) []event.Event {
	return []event.Event{
		b.At("2024-01-01T08:00:00Z", "p1", &event.ContactCreatedPayload{FirstName: "Ada"}),
		b.At("2024-01-01T09:00:00Z", "i1", &event.InteractionCreatedPayload{Type: "call", OccurredAt: "2024-01-01T10:00:00Z", ContactID: "p1"}),
		b.At("2024-01-01T09:30:00Z", "l1", &event.EntityLinkCreatedPayload{LinkType: document.LinkInteraction, InteractionID: "i1", EntityType: document.KindContact, EntityID: "p1"}),
	}
}

func countEvents(t *testing.T, dbPath string) int {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	n, err := st.CountEvents(context.Background())
	require.NoError(t, err)
	return n
}

func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
