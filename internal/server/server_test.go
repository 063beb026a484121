package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/collabcast/internal/actor"
	"github.com/pscheid92/collabcast/internal/canvas"
	"github.com/pscheid92/collabcast/internal/config"
	"github.com/pscheid92/collabcast/internal/notes"
	"github.com/pscheid92/collabcast/internal/protocol"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppEnv:                  "test",
		Port:                    "0",
		DataDir:                 t.TempDir(),
		BatchWindow:             16 * time.Millisecond,
		RetryDelay:              100 * time.Millisecond,
		RebroadcastDelay:        200 * time.Millisecond,
		CanvasRetention:         100,
		MaxClientsPerEntity:     10,
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     100,
		InboundMessageRate:      1000,
	}
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config) (*Server, *httptest.Server) {
	t.Helper()
	clock := clockwork.NewRealClock()

	notesDir := actor.NewDirectory(
		func(key string) actor.Handler {
			return notes.NewHandler(cfg.DataDir, key, clock)
		},
		actor.Options{
			Kind:             "notes",
			Clock:            clock,
			BatchWindow:      cfg.BatchWindow,
			RetryDelay:       cfg.RetryDelay,
			RebroadcastDelay: cfg.RebroadcastDelay,
			MaxClients:       cfg.MaxClientsPerEntity,
		},
	)
	canvasDir := actor.NewDirectory(
		func(key string) actor.Handler {
			return canvas.NewHandler(key, canvas.NewMemoryLog(cfg.CanvasRetention), cfg.CanvasRetention, clock)
		},
		actor.Options{
			Kind:             "canvas",
			Clock:            clock,
			BatchWindow:      cfg.BatchWindow,
			RetryDelay:       cfg.RetryDelay,
			RebroadcastDelay: cfg.RebroadcastDelay,
			MaxClients:       cfg.MaxClientsPerEntity,
			AnnouncePresence: true,
		},
	)
	t.Cleanup(notesDir.Stop)
	t.Cleanup(canvasDir.Stop)

	srv := NewServer(cfg, notesDir, canvasDir, nil, clock)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	return srv, ts
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(t))
}

func dialSocket(t *testing.T, ts *httptest.Server, path, clientID string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path + "?client_id=" + clientID
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *ws.Conn) protocol.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope protocol.Envelope
	require.NoError(t, json.Unmarshal(data, &envelope))
	return envelope
}

// awaitJoin consumes the init_state and client_init frames every fresh
// session receives.
func awaitJoin(t *testing.T, conn *ws.Conn) (initState, clientInit protocol.Envelope) {
	t.Helper()
	initState = readFrame(t, conn)
	require.Equal(t, protocol.TypeInitState, initState.Type)
	clientInit = readFrame(t, conn)
	require.Equal(t, protocol.TypeClientInit, clientInit.Type)
	return initState, clientInit
}

func sendFrame(t *testing.T, conn *ws.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(frame)))
}
