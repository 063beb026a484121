// Package session provides per-connection bookkeeping for one entity actor:
// the registry of live sessions, their lifecycle state, and the writer
// goroutine that owns the WebSocket send side.
package session

import (
	"github.com/google/uuid"
)

// State is the lifecycle state of one session.
type State int

const (
	// Joining covers the handshake window: the session is registered but
	// cannot yet receive application messages reliably.
	Joining State = iota
	// Ready means the session receives broadcasts.
	Ready
	// Closing means a close is in progress; no further sends.
	Closing
	// Closed is terminal; the session is removed from the registry on entry.
	Closed
)

func (s State) String() string {
	switch s {
	case Joining:
		return "joining"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session represents one live transport connection attached to an actor.
// All fields except the writer are immutable after creation; state moves
// only inside the owning actor's goroutine.
type Session struct {
	Handle   uuid.UUID
	ClientID string
	Color    string

	state  State
	writer *Writer
}

// New creates a session in the Joining state around an owned writer.
func New(clientID string, writer *Writer) *Session {
	return &Session{
		Handle:   uuid.New(),
		ClientID: clientID,
		Color:    ColorFor(clientID),
		state:    Joining,
		writer:   writer,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// SetState transitions the session. There is no transition out of Closed.
func (s *Session) SetState(state State) {
	if s.state == Closed {
		return
	}
	s.state = state
}

// TrySend hands serialized bytes to the writer without blocking.
// Returns false if the writer's buffer is full (slow client).
func (s *Session) TrySend(data []byte) bool {
	if s.writer == nil {
		return false
	}
	return s.writer.TrySend(data)
}

// Close stops the writer and closes the connection with the given reason.
func (s *Session) Close(reason string) {
	s.state = Closed
	if s.writer != nil {
		s.writer.StopGraceful(reason)
	}
}
