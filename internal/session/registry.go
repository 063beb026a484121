package session

import (
	"github.com/google/uuid"
)

// Registry tracks the live sessions of one actor, keyed by session handle.
// It is owned exclusively by the actor and accessed only from the actor's
// run loop, so it needs no locking.
type Registry struct {
	sessions map[uuid.UUID]*Session
	order    []uuid.UUID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Add inserts a session keyed by its handle.
func (r *Registry) Add(s *Session) {
	if _, exists := r.sessions[s.Handle]; exists {
		return
	}
	r.sessions[s.Handle] = s
	r.order = append(r.order, s.Handle)
}

// Remove deletes a session by handle. Removing an absent handle is not an
// error.
func (r *Registry) Remove(handle uuid.UUID) {
	if _, exists := r.sessions[handle]; !exists {
		return
	}
	delete(r.sessions, handle)
	for i, h := range r.order {
		if h == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the session for a handle, or nil.
func (r *Registry) Get(handle uuid.UUID) *Session {
	return r.sessions[handle]
}

// ForEach visits sessions in insertion order. fn may remove the current
// entry (or any other) mid-iteration; removed entries are skipped and the
// remaining order is preserved.
func (r *Registry) ForEach(fn func(*Session)) {
	handles := make([]uuid.UUID, len(r.order))
	copy(handles, r.order)
	for _, handle := range handles {
		if s, exists := r.sessions[handle]; exists {
			fn(s)
		}
	}
}

// Size returns the number of live sessions.
func (r *Registry) Size() int {
	return len(r.sessions)
}

// Drain removes and returns all sessions, used during actor shutdown.
func (r *Registry) Drain() []*Session {
	drained := make([]*Session, 0, len(r.sessions))
	for _, handle := range r.order {
		if s, exists := r.sessions[handle]; exists {
			drained = append(drained, s)
		}
	}
	r.sessions = make(map[uuid.UUID]*Session)
	r.order = nil
	return drained
}
