package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWS_JoinReceivesSnapshotThenClientInit(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notes?client_id=user-1&tab_id=tab-a"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	initState, clientInit := awaitJoin(t, conn)

	assert.JSONEq(t, `[]`, string(initState.Payload))
	assert.Equal(t, "tab-a", clientInit.ClientID)
	assert.NotEmpty(t, clientInit.Color)
}

func TestWS_ConnectionGetsGeneratedIDWithoutTabParam(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	_, clientInit := awaitJoin(t, conn)

	assert.NotEmpty(t, clientInit.ClientID)
	assert.NotEqual(t, "user-1", clientInit.ClientID)
}

func TestWS_NotesUpdateReachesUsersOtherTabs(t *testing.T) {
	_, ts := newTestServer(t)

	tabA := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, tabA)
	tabB := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, tabB)

	sendFrame(t, tabA, `{"type":"mutate","data":{"action":"create","title":"hello"}}`)

	frame := readFrame(t, tabB)
	require.Equal(t, "update", frame.Type)
	assert.Contains(t, string(frame.Payload), `"hello"`)
}

func TestWS_RestMutationReachesConnectedTabs(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, conn)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/notes", "user-1", map[string]string{"title": "from rest"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	frame := readFrame(t, conn)
	require.Equal(t, "update", frame.Type)
	assert.Contains(t, string(frame.Payload), `"from rest"`)
}

func TestWS_RequiresIdentity(t *testing.T) {
	_, ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notes"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWS_MutationBroadcastsToPeers(t *testing.T) {
	_, ts := newTestServer(t)

	artist := dialSocket(t, ts, "/ws/canvas/room-1", "artist")
	awaitJoin(t, artist)
	viewer := dialSocket(t, ts, "/ws/canvas/room-1", "viewer")
	awaitJoin(t, viewer)

	sendFrame(t, artist, `{"type":"mutate","data":{"action":"stroke","client_id":"artist","points":[{"x":0,"y":0}],"color":"#e6194b"}}`)

	frame := readFrame(t, viewer)
	require.Equal(t, "events", frame.Type)

	var batch []json.RawMessage
	require.NoError(t, json.Unmarshal(frame.Payload, &batch))
	assert.Len(t, batch, 1)
}

func TestWS_ClearBypassesBatching(t *testing.T) {
	_, ts := newTestServer(t)

	artist := dialSocket(t, ts, "/ws/canvas/room-1", "artist")
	awaitJoin(t, artist)
	viewer := dialSocket(t, ts, "/ws/canvas/room-1", "viewer")
	awaitJoin(t, viewer)

	sendFrame(t, artist, `{"type":"mutate","data":{"action":"clear"}}`)

	frame := readFrame(t, viewer)
	assert.Equal(t, "update", frame.Type)
	assert.JSONEq(t, `{"action":"clear"}`, string(frame.Payload))
}

func TestWS_PingAnsweredWithPong(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, conn)

	sendFrame(t, conn, `{"type":"ping"}`)
	frame := readFrame(t, conn)
	assert.Equal(t, "pong", frame.Type)
}

func TestWS_MalformedFrameKeepsConnectionOpen(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, conn)

	sendFrame(t, conn, `{"type":"warp"}`)
	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Message, "unknown message type")

	// Connection survives; a ping still round-trips.
	sendFrame(t, conn, `{"type":"ping"}`)
	frame = readFrame(t, conn)
	assert.Equal(t, "pong", frame.Type)
}

func TestWS_FailedMutationReportsErrorWithoutClosing(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, conn)

	sendFrame(t, conn, `{"type":"mutate","data":{"action":"create"}}`)
	frame := readFrame(t, conn)
	require.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Message, "title")

	sendFrame(t, conn, `{"type":"ping"}`)
	frame = readFrame(t, conn)
	assert.Equal(t, "pong", frame.Type)
}

func TestWS_CursorReachesPeersOnly(t *testing.T) {
	_, ts := newTestServer(t)

	artist := dialSocket(t, ts, "/ws/canvas/room-1", "artist")
	awaitJoin(t, artist)
	viewer := dialSocket(t, ts, "/ws/canvas/room-1", "viewer")
	awaitJoin(t, viewer)

	sendFrame(t, artist, `{"type":"cursor","data":{"x":10,"y":20}}`)

	frame := readFrame(t, viewer)
	require.Equal(t, "peer_signal", frame.Type)
	assert.Equal(t, "artist", frame.ClientID)
	assert.JSONEq(t, `{"x":10,"y":20}`, string(frame.Data))
}

func TestWS_LeaveAnnouncesDeparture(t *testing.T) {
	_, ts := newTestServer(t)

	leaver := dialSocket(t, ts, "/ws/canvas/room-1", "leaver")
	awaitJoin(t, leaver)
	stayer := dialSocket(t, ts, "/ws/canvas/room-1", "stayer")
	awaitJoin(t, stayer)

	sendFrame(t, leaver, `{"type":"leave"}`)

	frame := readFrame(t, stayer)
	require.Equal(t, "peer_signal", frame.Type)
	assert.Equal(t, "leaver", frame.ClientID)
	assert.JSONEq(t, `{"left":true}`, string(frame.Data))
}

func TestWS_SubscribeMismatchIsRefused(t *testing.T) {
	_, ts := newTestServer(t)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, conn)

	sendFrame(t, conn, `{"type":"subscribe","data":{"clientId":"someone-else"}}`)
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
}

func TestWS_PerIPConnectionLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxConnectionsPerIP = 1
	_, ts := newTestServerWithConfig(t, cfg)

	first := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, first)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notes?client_id=user-2"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWS_GlobalConnectionLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxWebSocketConnections = 1
	_, ts := newTestServerWithConfig(t, cfg)

	first := dialSocket(t, ts, "/ws/notes", "user-1")
	awaitJoin(t, first)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/notes?client_id=user-2"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestWS_NotesStateVisibleAcrossTransports(t *testing.T) {
	_, ts := newTestServer(t)

	// Create through REST, then join over WebSocket: the snapshot contains
	// the committed note.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/notes", "user-1", map[string]string{"title": "from rest"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	conn := dialSocket(t, ts, "/ws/notes", "user-1")
	initState, _ := awaitJoin(t, conn)

	var listed []struct {
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(initState.Payload, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "from rest", listed[0].Title)
}
