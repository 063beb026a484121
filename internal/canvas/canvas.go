// Package canvas implements the per-room collaborative canvas actor: an
// append-only log of drawing events with bounded retention, optionally
// backed by Redis.
package canvas

import (
	"github.com/google/uuid"
)

const maxStrokePoints = 2048

// Point is one coordinate of a stroke path.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Event is one committed drawing event. Events are immutable once appended;
// a clear discards the whole log rather than rewriting history.
type Event struct {
	ID        uuid.UUID `json:"id"`
	ClientID  string    `json:"client_id,omitempty"`
	Kind      string    `json:"kind"`
	Points    []Point   `json:"points,omitempty"`
	Color     string    `json:"color,omitempty"`
	Timestamp int64     `json:"timestamp"`
}
