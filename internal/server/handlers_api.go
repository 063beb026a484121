package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/collabcast/internal/actor"
	apperrors "github.com/pscheid92/collabcast/internal/errors"
)

// identityPattern bounds client and room identifiers. Identity itself is
// resolved upstream; this layer only refuses keys that cannot name an actor.
var identityPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// clientIdentity extracts the caller's client id from the X-Client-ID
// header, falling back to the client_id query parameter for WebSocket
// clients that cannot set headers.
func clientIdentity(c echo.Context) (string, error) {
	clientID := c.Request().Header.Get("X-Client-ID")
	if clientID == "" {
		clientID = c.QueryParam("client_id")
	}
	if !identityPattern.MatchString(clientID) {
		return "", apperrors.ValidationError("missing or invalid client id")
	}
	c.Set("clientID", clientID)
	return clientID, nil
}

// connectionIdentity resolves the per-connection client id used for echo
// suppression and presence. A client that wants suppression to survive a
// reconnect supplies its previous id via the tab_id query parameter;
// otherwise each connection gets a fresh one. This id is deliberately
// distinct from the user identity: all of a user's tabs attach to the same
// notes actor, and each tab must still receive the others' updates.
func connectionIdentity(c echo.Context) (string, error) {
	tabID := c.QueryParam("tab_id")
	if tabID == "" {
		return uuid.NewString(), nil
	}
	if !identityPattern.MatchString(tabID) {
		return "", apperrors.ValidationError("invalid tab id")
	}
	return tabID, nil
}

func roomKey(c echo.Context) (string, error) {
	room := c.Param("room")
	if !identityPattern.MatchString(room) {
		return "", apperrors.ValidationError("invalid room id")
	}
	return room, nil
}

// mutateThrough resolves the actor for key and applies one mutation,
// re-resolving once if the actor was evicted between lookup and send.
// REST callers have no session attached, so they pass an empty origin and
// the change is broadcast to every connected tab.
func mutateThrough(dir *actor.Directory, key, origin string, op any) (json.RawMessage, error) {
	encoded, err := json.Marshal(op)
	if err != nil {
		return nil, apperrors.InternalError("failed to encode mutation", err)
	}

	payload, err := dir.Get(key).Mutate(origin, encoded)
	if errors.Is(err, actor.ErrStopped) {
		payload, err = dir.Get(key).Mutate(origin, encoded)
	}
	return payload, err
}

func snapshotThrough(dir *actor.Directory, key string) (json.RawMessage, error) {
	payload, err := dir.Get(key).Snapshot()
	if errors.Is(err, actor.ErrStopped) {
		payload, err = dir.Get(key).Snapshot()
	}
	return payload, err
}

type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type noteOp struct {
	Action  string  `json:"action"`
	ID      string  `json:"id,omitempty"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (s *Server) handleListNotes(c echo.Context) error {
	clientID, err := clientIdentity(c)
	if err != nil {
		return err
	}

	snapshot, err := snapshotThrough(s.notes, clientID)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, snapshot)
}

func (s *Server) handleCreateNote(c echo.Context) error {
	clientID, err := clientIdentity(c)
	if err != nil {
		return err
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	payload, err := mutateThrough(s.notes, clientID, "", noteOp{
		Action:  "create",
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusCreated, payload)
}

func (s *Server) handleUpdateNote(c echo.Context) error {
	clientID, err := clientIdentity(c)
	if err != nil {
		return err
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("malformed request body")
	}

	payload, err := mutateThrough(s.notes, clientID, "", noteOp{
		Action:  "update",
		ID:      c.Param("id"),
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, payload)
}

func (s *Server) handleDeleteNote(c echo.Context) error {
	clientID, err := clientIdentity(c)
	if err != nil {
		return err
	}

	payload, err := mutateThrough(s.notes, clientID, "", noteOp{
		Action: "delete",
		ID:     c.Param("id"),
	})
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, payload)
}

func (s *Server) handleCanvasEvents(c echo.Context) error {
	room, err := roomKey(c)
	if err != nil {
		return err
	}

	snapshot, err := snapshotThrough(s.canvas, room)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, snapshot)
}
