package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pscheid92/collabcast/internal/errors"
)

func newTestHandler(t *testing.T, dataDir string) (*Handler, *clockwork.FakeClock) {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	h := NewHandler(dataDir, "user-1", fc)
	require.NoError(t, h.Init(context.Background()))
	t.Cleanup(func() { _ = h.Close() })
	return h, fc
}

func createNote(t *testing.T, h *Handler, title string) Note {
	t.Helper()
	change, err := h.Mutate(context.Background(), json.RawMessage(fmt.Sprintf(`{"action":"create","title":%q}`, title)))
	require.NoError(t, err)

	var payload changePayload
	require.NoError(t, json.Unmarshal(change.Payload, &payload))
	require.NotNil(t, payload.Note)
	return *payload.Note
}

func TestHandler_CreateNote(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())

	note := createNote(t, h, "groceries")
	assert.Equal(t, "groceries", note.Title)
	assert.Equal(t, int64(1_700_000_000_000), note.CreatedAt)
	assert.Equal(t, note.CreatedAt, note.UpdatedAt)

	snapshot, err := h.Snapshot()
	require.NoError(t, err)

	var notes []Note
	require.NoError(t, json.Unmarshal(snapshot, &notes))
	require.Len(t, notes, 1)
	assert.Equal(t, note.ID, notes[0].ID)
}

func TestHandler_CreateRequiresTitle(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())

	for _, op := range []string{
		`{"action":"create"}`,
		`{"action":"create","title":"  "}`,
	} {
		_, err := h.Mutate(context.Background(), json.RawMessage(op))
		require.Error(t, err)
		assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
	}
}

func TestHandler_UpdateNote(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())
	note := createNote(t, h, "draft")

	op := fmt.Sprintf(`{"action":"update","id":%q,"title":"final","content":"done"}`, note.ID)
	change, err := h.Mutate(context.Background(), json.RawMessage(op))
	require.NoError(t, err)
	assert.False(t, change.Priority)

	var payload changePayload
	require.NoError(t, json.Unmarshal(change.Payload, &payload))
	assert.Equal(t, "update", payload.Action)
	assert.Equal(t, "final", payload.Note.Title)
	assert.Equal(t, "done", payload.Note.Content)
}

func TestHandler_UpdateUnknownNote(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())

	op := `{"action":"update","id":"3f2f1a84-1111-4222-8333-444455556666","title":"x"}`
	_, err := h.Mutate(context.Background(), json.RawMessage(op))
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeNotFound, apperrors.AsStructuredError(err).Type)
}

func TestHandler_DeleteTakesPriorityPath(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())
	note := createNote(t, h, "temporary")

	change, err := h.Mutate(context.Background(), json.RawMessage(fmt.Sprintf(`{"action":"delete","id":%q}`, note.ID)))
	require.NoError(t, err)
	assert.True(t, change.Priority, "deletions bypass batching")

	var payload changePayload
	require.NoError(t, json.Unmarshal(change.Payload, &payload))
	assert.Equal(t, "delete", payload.Action)
	assert.Equal(t, note.ID.String(), payload.ID)

	snapshot, err := h.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(snapshot))
}

func TestHandler_UnknownActionRejected(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir())

	_, err := h.Mutate(context.Background(), json.RawMessage(`{"action":"archive"}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestHandler_RehydratesFromDatabaseFile(t *testing.T) {
	dataDir := t.TempDir()

	h, fc := newTestHandler(t, dataDir)
	first := createNote(t, h, "persisted")
	fc.Advance(time.Second)
	second := createNote(t, h, "also persisted")
	require.NoError(t, h.Close())

	// A fresh handler for the same user rehydrates both notes.
	reborn, _ := newTestHandler(t, dataDir)
	snapshot, err := reborn.Snapshot()
	require.NoError(t, err)

	var notes []Note
	require.NoError(t, json.Unmarshal(snapshot, &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, first.ID, notes[0].ID)
	assert.Equal(t, second.ID, notes[1].ID)
}

func TestHandler_IsolatedPerUser(t *testing.T) {
	dataDir := t.TempDir()
	fc := clockwork.NewFakeClock()

	h1 := NewHandler(dataDir, "user-1", fc)
	require.NoError(t, h1.Init(context.Background()))
	t.Cleanup(func() { _ = h1.Close() })

	h2 := NewHandler(dataDir, "user-2", fc)
	require.NoError(t, h2.Init(context.Background()))
	t.Cleanup(func() { _ = h2.Close() })

	createNote(t, h1, "private")

	snapshot, err := h2.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(snapshot))
}

func TestOpenStore_RejectsPathTraversal(t *testing.T) {
	_, err := OpenStore(context.Background(), t.TempDir(), "../escape")
	require.Error(t, err)
}
