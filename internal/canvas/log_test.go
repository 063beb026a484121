package canvas

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() Event {
	return Event{
		ID:     uuid.New(),
		Kind:   "stroke",
		Points: []Point{{X: 1, Y: 1}},
	}
}

func TestMemoryLog_AppendAndLoad(t *testing.T) {
	log := NewMemoryLog(100)
	ctx := context.Background()

	first := testEvent()
	second := testEvent()
	require.NoError(t, log.Append(ctx, first))
	require.NoError(t, log.Append(ctx, second))

	events, err := log.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, first.ID, events[0].ID)
	assert.Equal(t, second.ID, events[1].ID)
}

func TestMemoryLog_EnforcesRetention(t *testing.T) {
	log := NewMemoryLog(3)
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		event := testEvent()
		ids = append(ids, event.ID)
		require.NoError(t, log.Append(ctx, event))
	}

	events, err := log.Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ids[2], events[0].ID)
	assert.Equal(t, ids[4], events[2].ID)
}

func TestMemoryLog_Clear(t *testing.T) {
	log := NewMemoryLog(100)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, testEvent()))
	require.NoError(t, log.Clear(ctx))

	events, err := log.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMemoryLog_LoadReturnsACopy(t *testing.T) {
	log := NewMemoryLog(100)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, testEvent()))
	events, err := log.Load(ctx)
	require.NoError(t, err)

	events[0].Color = "mutated"
	reloaded, err := log.Load(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", reloaded[0].Color)
}
