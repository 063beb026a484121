// Package protocol defines the JSON envelopes exchanged with WebSocket
// clients and the decoding of inbound frames into typed messages.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/pscheid92/collabcast/internal/errors"
)

// Outbound message types.
const (
	TypeInitState  = "init_state"
	TypeClientInit = "client_init"
	TypeUpdate     = "update"
	TypeEvents     = "events"
	TypePeerSignal = "peer_signal"
	TypePong       = "pong"
	TypeError      = "error"
)

// Inbound message types.
const (
	TypeMutate    = "mutate"
	TypeSubscribe = "subscribe"
	TypePing      = "ping"
	TypeCursor    = "cursor"
	TypeLeave     = "leave"
)

// Envelope is the outbound message shape. Fields not used by a given
// message type are omitted from the JSON.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Color     string          `json:"color,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Encode serializes the envelope once; the broadcast engine reuses the
// resulting bytes for every recipient.
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", e.Type, err)
	}
	return data, nil
}

// InitState carries the full snapshot sent on join.
func InitState(payload json.RawMessage, timestamp int64) Envelope {
	return Envelope{Type: TypeInitState, Payload: payload, Timestamp: timestamp}
}

// ClientInit tells the joining client its identity and assigned color.
func ClientInit(clientID, color string) Envelope {
	return Envelope{Type: TypeClientInit, ClientID: clientID, Color: color}
}

// Update carries a single committed change.
func Update(payload json.RawMessage, timestamp int64) Envelope {
	return Envelope{Type: TypeUpdate, Payload: payload, Timestamp: timestamp}
}

// Events carries a flushed batch of changes in append order.
func Events(payload json.RawMessage, timestamp int64) Envelope {
	return Envelope{Type: TypeEvents, Payload: payload, Timestamp: timestamp}
}

// PeerSignal carries an ephemeral peer event (cursor move, peer left).
// Never persisted, never part of init_state.
func PeerSignal(clientID, color string, data json.RawMessage) Envelope {
	return Envelope{Type: TypePeerSignal, ClientID: clientID, Color: color, Data: data}
}

// Pong answers a client ping on the same connection.
func Pong() Envelope {
	return Envelope{Type: TypePong}
}

// ErrorFrame reports a failure to the client without closing the connection.
func ErrorFrame(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

// Inbound is the decoded form of a client frame.
type Inbound interface{ isInbound() }

// Mutate requests a state mutation; Op is interpreted by the domain handler.
type Mutate struct {
	Op json.RawMessage
}

func (Mutate) isInbound() {}

// Subscribe is sent once after connect to identify the client.
type Subscribe struct {
	ClientID string
}

func (Subscribe) isInbound() {}

// Ping is a heartbeat; answered with pong, never touches state.
type Ping struct{}

func (Ping) isInbound() {}

// Cursor is an ephemeral pointer position.
type Cursor struct {
	X float64
	Y float64
}

func (Cursor) isInbound() {}

// Leave announces an orderly departure before the transport closes.
type Leave struct{}

func (Leave) isInbound() {}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type subscribeData struct {
	ClientID string `json:"clientId"`
}

type cursorData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Decode parses one client frame into a typed message. Unknown tags and
// malformed payloads yield a validation error; the connection stays open.
func Decode(raw []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errors.ValidationError("malformed message")
	}

	switch frame.Type {
	case TypeMutate:
		if len(frame.Data) == 0 {
			return nil, errors.ValidationError("mutate requires data")
		}
		return Mutate{Op: frame.Data}, nil
	case TypeSubscribe:
		var data subscribeData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.ClientID == "" {
			return nil, errors.ValidationError("subscribe requires clientId")
		}
		return Subscribe{ClientID: data.ClientID}, nil
	case TypePing:
		return Ping{}, nil
	case TypeCursor:
		var data cursorData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			return nil, errors.ValidationError("malformed cursor data")
		}
		return Cursor{X: data.X, Y: data.Y}, nil
	case TypeLeave:
		return Leave{}, nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown message type %q", frame.Type))
	}
}
