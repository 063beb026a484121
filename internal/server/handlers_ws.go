package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/pscheid92/collabcast/internal/actor"
	apperrors "github.com/pscheid92/collabcast/internal/errors"
	"github.com/pscheid92/collabcast/internal/logging"
	"github.com/pscheid92/collabcast/internal/metrics"
	"github.com/pscheid92/collabcast/internal/protocol"
	"github.com/pscheid92/collabcast/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // identity is resolved upstream, not by origin
	},
}

func (s *Server) handleNotesSocket(c echo.Context) error {
	userID, err := clientIdentity(c)
	if err != nil {
		return err
	}
	// One notes actor per user: the entity key is the user identity. The
	// session carries a per-connection id instead, so echo suppression
	// skips only the originating tab and the user's other tabs still
	// receive every committed change.
	tabID, err := connectionIdentity(c)
	if err != nil {
		return err
	}
	return s.serveSocket(c, s.notes, userID, tabID)
}

func (s *Server) handleCanvasSocket(c echo.Context) error {
	clientID, err := clientIdentity(c)
	if err != nil {
		return err
	}
	room, err := roomKey(c)
	if err != nil {
		return err
	}
	return s.serveSocket(c, s.canvas, room, clientID)
}

func (s *Server) serveSocket(c echo.Context, dir *actor.Directory, key, clientID string) error {
	ip := c.RealIP()
	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionsRejectedTotal.WithLabelValues(string(reason)).Inc()
		return echo.NewHTTPError(http.StatusTooManyRequests, string(reason))
	}
	defer s.limits.Release(ip)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	writer := session.NewWriter(conn, s.clock)

	a := dir.Get(key)
	result, err := a.Join(clientID, writer)
	if errors.Is(err, actor.ErrStopped) {
		// The actor was evicted between lookup and join; resolve a fresh one.
		a = dir.Get(key)
		result, err = a.Join(clientID, writer)
	}
	if err != nil {
		sendError(writer, err)
		writer.StopGraceful("join rejected")
		return nil
	}

	logging.WithClient(clientID).Debug("WebSocket session joined", "entity", key)

	defer func() {
		a.Leave(result.Handle)
		writer.Stop()
	}()

	s.readPump(conn, writer, a, result)
	return nil
}

// readPump processes inbound frames until the connection drops or the
// client leaves. Malformed frames and failed mutations produce an error
// frame on the same connection; the connection stays open.
func (s *Server) readPump(conn *websocket.Conn, writer *session.Writer, a *actor.Actor, join actor.JoinResult) {
	limiter := rate.NewLimiter(
		rate.Limit(s.config.InboundMessageRate),
		int(s.config.InboundMessageRate*2),
	)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		if !limiter.Allow() {
			metrics.InboundFramesDropped.Inc()
			continue
		}

		inbound, err := protocol.Decode(raw)
		if err != nil {
			sendError(writer, err)
			continue
		}

		switch msg := inbound.(type) {
		case protocol.Mutate:
			if _, err := a.Mutate(join.ClientID, msg.Op); err != nil {
				sendError(writer, err)
			}
		case protocol.Cursor:
			data, err := json.Marshal(struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			}{msg.X, msg.Y})
			if err != nil {
				continue
			}
			a.Signal(join.ClientID, data)
		case protocol.Ping:
			sendEnvelope(writer, protocol.Pong())
		case protocol.Subscribe:
			// The session is registered at upgrade time; a subscribe for a
			// different identity is refused, a matching one is a no-op.
			if msg.ClientID != join.ClientID {
				sendError(writer, apperrors.ValidationError("subscribe does not match connection identity"))
			}
		case protocol.Leave:
			return
		}
	}
}

func sendEnvelope(writer *session.Writer, envelope protocol.Envelope) {
	data, err := envelope.Encode()
	if err != nil {
		return
	}
	writer.TrySend(data)
}

func sendError(writer *session.Writer, err error) {
	sendEnvelope(writer, protocol.ErrorFrame(apperrors.AsStructuredError(err).Message))
}
