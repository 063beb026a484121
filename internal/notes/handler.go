package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/collabcast/internal/actor"
	apperrors "github.com/pscheid92/collabcast/internal/errors"
)

// mutateOp is the decoded mutate payload for notes.
type mutateOp struct {
	Action  string  `json:"action"`
	ID      string  `json:"id"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// changePayload is what clients receive (and REST callers get back) for a
// committed notes mutation.
type changePayload struct {
	Action string `json:"action"`
	Note   *Note  `json:"note,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Handler owns one user's note set. All methods run on the actor's goroutine.
type Handler struct {
	dataDir string
	userID  string
	clock   clockwork.Clock

	store *Store
	notes map[uuid.UUID]Note
}

// NewHandler builds the handler for one user's notes actor. The store is
// opened during Init, not here: actor construction must stay cheap.
func NewHandler(dataDir, userID string, clock clockwork.Clock) *Handler {
	return &Handler{
		dataDir: dataDir,
		userID:  userID,
		clock:   clock,
		notes:   make(map[uuid.UUID]Note),
	}
}

// Init opens the user's database and rehydrates the in-memory note set.
func (h *Handler) Init(ctx context.Context) error {
	store, err := OpenStore(ctx, h.dataDir, h.userID)
	if err != nil {
		return fmt.Errorf("failed to open notes store: %w", err)
	}

	loaded, err := store.List(ctx)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to rehydrate notes: %w", err)
	}

	h.store = store
	for _, n := range loaded {
		h.notes[n.ID] = n
	}
	return nil
}

// Snapshot returns every note, ordered by creation time.
func (h *Handler) Snapshot() (json.RawMessage, error) {
	list := make([]Note, 0, len(h.notes))
	for _, n := range h.notes {
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt < list[j].CreatedAt
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return json.Marshal(list)
}

// Mutate applies one create/update/delete. The durable write commits before
// the in-memory state changes, so a persistence failure leaves nothing to
// roll back and nothing unrecoverable is ever broadcast.
func (h *Handler) Mutate(ctx context.Context, op json.RawMessage) (*actor.Change, error) {
	var parsed mutateOp
	if err := json.Unmarshal(op, &parsed); err != nil {
		return nil, apperrors.ValidationError("malformed notes mutation")
	}

	switch parsed.Action {
	case "create":
		return h.create(ctx, parsed)
	case "update":
		return h.update(ctx, parsed)
	case "delete":
		return h.delete(ctx, parsed)
	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown notes action %q", parsed.Action))
	}
}

func (h *Handler) create(ctx context.Context, op mutateOp) (*actor.Change, error) {
	if op.Title == nil || strings.TrimSpace(*op.Title) == "" {
		return nil, apperrors.ValidationError("title is required")
	}
	if len(*op.Title) > maxTitleLength {
		return nil, apperrors.ValidationError("title too long")
	}

	now := timestamp(h.clock.Now())
	note := Note{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(*op.Title),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if op.Content != nil {
		note.Content = *op.Content
	}

	if h.store == nil {
		return nil, apperrors.PersistenceError("notes store unavailable", nil)
	}
	if err := h.store.Insert(ctx, note); err != nil {
		return nil, apperrors.PersistenceError("failed to persist note", err)
	}
	h.notes[note.ID] = note

	return h.change("create", &note, "", false)
}

func (h *Handler) update(ctx context.Context, op mutateOp) (*actor.Change, error) {
	id, err := uuid.Parse(op.ID)
	if err != nil {
		return nil, apperrors.ValidationError("invalid note id")
	}
	note, exists := h.notes[id]
	if !exists {
		return nil, apperrors.NotFoundError("note not found")
	}

	if op.Title != nil {
		trimmed := strings.TrimSpace(*op.Title)
		if trimmed == "" {
			return nil, apperrors.ValidationError("title must not be empty")
		}
		if len(trimmed) > maxTitleLength {
			return nil, apperrors.ValidationError("title too long")
		}
		note.Title = trimmed
	}
	if op.Content != nil {
		note.Content = *op.Content
	}
	note.UpdatedAt = timestamp(h.clock.Now())

	if err := h.store.Update(ctx, note); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return nil, apperrors.NotFoundError("note not found")
		}
		return nil, apperrors.PersistenceError("failed to persist note", err)
	}
	h.notes[id] = note

	return h.change("update", &note, "", false)
}

func (h *Handler) delete(ctx context.Context, op mutateOp) (*actor.Change, error) {
	id, err := uuid.Parse(op.ID)
	if err != nil {
		return nil, apperrors.ValidationError("invalid note id")
	}
	if _, exists := h.notes[id]; !exists {
		return nil, apperrors.NotFoundError("note not found")
	}

	if err := h.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			return nil, apperrors.NotFoundError("note not found")
		}
		return nil, apperrors.PersistenceError("failed to delete note", err)
	}
	delete(h.notes, id)

	// Deletions take the unbatched fast path.
	return h.change("delete", nil, id.String(), true)
}

func (h *Handler) change(action string, note *Note, id string, priority bool) (*actor.Change, error) {
	payload, err := json.Marshal(changePayload{Action: action, Note: note, ID: id})
	if err != nil {
		return nil, apperrors.InternalError("failed to encode change", err)
	}
	return &actor.Change{Payload: payload, Priority: priority}, nil
}

// Close releases the database handle when the actor is evicted.
func (h *Handler) Close() error {
	if h.store == nil {
		return nil
	}
	return h.store.Close()
}
