package canvas

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

func newTestHandler(t *testing.T, log EventLog, retention int) *Handler {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	h := NewHandler("room-1", log, retention, fc)
	require.NoError(t, h.Init(context.Background()))
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func drawStroke(t *testing.T, h *Handler, color string) Event {
	t.Helper()
	op := fmt.Sprintf(`{"action":"stroke","client_id":"client-1","points":[{"x":0,"y":0},{"x":5,"y":5}],"color":%q}`, color)
	change, err := h.Mutate(context.Background(), json.RawMessage(op))
	require.NoError(t, err)
	require.True(t, change.Batchable)

	var payload changePayload
	require.NoError(t, json.Unmarshal(change.Payload, &payload))
	require.NotNil(t, payload.Event)
	return *payload.Event
}

func TestHandler_StrokeIsBatchable(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(100), 100)

	event := drawStroke(t, h, "#e6194b")
	assert.Equal(t, "stroke", event.Kind)
	assert.Equal(t, "client-1", event.ClientID)
	assert.Equal(t, "#e6194b", event.Color)
	assert.Equal(t, int64(1_700_000_000_000), event.Timestamp)
	assert.Len(t, event.Points, 2)
}

func TestHandler_StrokeRequiresPoints(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(100), 100)

	_, err := h.Mutate(context.Background(), json.RawMessage(`{"action":"stroke","points":[]}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestHandler_ClearTakesPriorityPath(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(100), 100)
	drawStroke(t, h, "#3cb44b")

	change, err := h.Mutate(context.Background(), json.RawMessage(`{"action":"clear"}`))
	require.NoError(t, err)
	assert.True(t, change.Priority, "clears bypass batching")
	assert.False(t, change.Batchable)

	snapshot, err := h.Snapshot()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(snapshot))
}

func TestHandler_UnknownActionRejected(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(100), 100)

	_, err := h.Mutate(context.Background(), json.RawMessage(`{"action":"erase"}`))
	require.Error(t, err)
	assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
}

func TestHandler_SnapshotPreservesAppendOrder(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(100), 100)

	first := drawStroke(t, h, "#ffe119")
	second := drawStroke(t, h, "#4363d8")

	snapshot, err := h.Snapshot()
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(snapshot, &events))
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
}

func TestHandler_WorkingCopyHonorsRetention(t *testing.T) {
	h := newTestHandler(t, NewMemoryLog(3), 3)

	var last Event
	for i := 0; i < 5; i++ {
		last = drawStroke(t, h, "#f58231")
	}

	snapshot, err := h.Snapshot()
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(snapshot, &events))
	require.Len(t, events, 3)
	assert.Equal(t, last.ID, events[2].ID)
}

func TestHandler_RehydratesFromLog(t *testing.T) {
	log := NewMemoryLog(100)

	h := newTestHandler(t, log, 100)
	event := drawStroke(t, h, "#911eb4")

	// A replacement handler for the same room sees the history.
	reborn := newTestHandler(t, log, 100)
	snapshot, err := reborn.Snapshot()
	require.NoError(t, err)

	var events []Event
	require.NoError(t, json.Unmarshal(snapshot, &events))
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
}
