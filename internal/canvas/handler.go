package canvas

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/collabcast/internal/actor"
	apperrors "github.com/pscheid92/collabcast/internal/errors"
)

// mutateOp is the decoded mutate payload for canvas rooms.
type mutateOp struct {
	Action   string  `json:"action"`
	ClientID string  `json:"client_id"`
	Points   []Point `json:"points"`
	Color    string  `json:"color"`
}

// changePayload is what clients receive for a committed canvas mutation.
type changePayload struct {
	Action string `json:"action"`
	Event  *Event `json:"event,omitempty"`
}

// Handler owns one room's event history. All methods run on the actor's
// goroutine.
type Handler struct {
	room      string
	clock     clockwork.Clock
	log       EventLog
	retention int

	events []Event
}

// NewHandler builds the handler for one room's canvas actor. The log is the
// durable backing (Redis when configured, in-process memory otherwise); the
// handler keeps a working copy for snapshots.
func NewHandler(room string, log EventLog, retention int, clock clockwork.Clock) *Handler {
	return &Handler{
		room:      room,
		clock:     clock,
		log:       log,
		retention: retention,
	}
}

// Init rehydrates the room's event history from the log.
func (h *Handler) Init(ctx context.Context) error {
	events, err := h.log.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to rehydrate canvas events: %w", err)
	}
	h.events = events
	return nil
}

// Snapshot returns the full retained event history in append order.
func (h *Handler) Snapshot() (json.RawMessage, error) {
	if h.events == nil {
		return json.RawMessage(`[]`), nil
	}
	return json.Marshal(h.events)
}

// Mutate applies one stroke or clear. The durable append commits before the
// working copy changes, so nothing unrecoverable is ever broadcast.
func (h *Handler) Mutate(ctx context.Context, op json.RawMessage) (*actor.Change, error) {
	var parsed mutateOp
	if err := json.Unmarshal(op, &parsed); err != nil {
		return nil, apperrors.ValidationError("malformed canvas mutation")
	}

	switch parsed.Action {
	case "stroke":
		return h.stroke(ctx, parsed)
	case "clear":
		return h.clear(ctx)
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown canvas action %q", parsed.Action))
	}
}

func (h *Handler) stroke(ctx context.Context, op mutateOp) (*actor.Change, error) {
	if len(op.Points) == 0 {
		return nil, apperrors.ValidationError("stroke needs at least one point")
	}
	if len(op.Points) > maxStrokePoints {
		return nil, apperrors.ValidationError("stroke has too many points")
	}

	event := Event{
		ID:        uuid.New(),
		ClientID:  op.ClientID,
		Kind:      "stroke",
		Points:    op.Points,
		Color:     op.Color,
		Timestamp: h.clock.Now().UnixMilli(),
	}

	if err := h.log.Append(ctx, event); err != nil {
		return nil, apperrors.PersistenceError("failed to persist canvas event", err)
	}
	h.events = append(h.events, event)
	if excess := len(h.events) - h.retention; excess > 0 {
		h.events = append(h.events[:0:0], h.events[excess:]...)
	}

	payload, err := json.Marshal(changePayload{Action: "stroke", Event: &event})
	if err != nil {
		return nil, apperrors.InternalError("failed to encode change", err)
	}
	// Strokes arrive in bursts while drawing; coalesce them per batch window.
	return &actor.Change{Payload: payload, Batchable: true}, nil
}

func (h *Handler) clear(ctx context.Context) (*actor.Change, error) {
	if err := h.log.Clear(ctx); err != nil {
		return nil, apperrors.PersistenceError("failed to clear canvas", err)
	}
	h.events = nil

	payload, err := json.Marshal(changePayload{Action: "clear"})
	if err != nil {
		return nil, apperrors.InternalError("failed to encode change", err)
	}
	// A clear must not sit behind buffered strokes on any client.
	return &actor.Change{Payload: payload, Priority: true}, nil
}

// Close releases the room's log.
func (h *Handler) Close() error {
	return h.log.Close()
}
