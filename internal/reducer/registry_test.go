package reducer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/document"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/errs"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/event"
	"github.com/Masked-Kunsiquat/crm-orbit2-sub010/internal/testutil"
)

func TestDefaultRegistersEveryPrefix(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{
		"account", "audit", "calendarEvent", "code", "contact",
		"entityLink", "interaction", "note", "organization",
	}, r.Prefixes())

	for _, typ := range event.Types() {
		_, ok := r.Lookup(typ)
		assert.True(t, ok, "no reducer for %s", typ)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("note", reduceNote))

	err := r.Register("note", reduceNote)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Error(t, r.Register("", reduceNote))
	assert.Error(t, r.Register("code", nil))
}

func TestFoldUnknownType(t *testing.T) {
	r := NewRegistry()
	b := testutil.NewEventBuilder("d1")

	_, err := r.Fold(document.New(), b.Event("n1", &event.NoteCreatedPayload{Body: "x"}))
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeUnknownEventType))
}

func TestFoldAnnotatesErrorsWithEvent(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	e := b.Event("n1", &event.NoteDeletedPayload{})

	_, err := Default().Fold(document.New(), e)
	require.Error(t, err)
	var coded *errs.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, errs.CodeNotFound, coded.Code)
	assert.Equal(t, e.ID, coded.EventID)
	assert.Equal(t, string(event.NoteDeleted), coded.EventType)
}

func TestFoldDoesNotModifyInput(t *testing.T) {
	b := testutil.NewEventBuilder("d1")
	r := Default()

	before := document.New()
	after, err := r.Fold(before, b.Event("n1", &event.NoteCreatedPayload{Body: "x"}))
	require.NoError(t, err)

	assert.Empty(t, before.Notes)
	assert.Len(t, after.Notes, 1)
}
