package stream

import (
	"sort"
	"sync"
)

// Registry is the concurrency-safe table of relay sessions keyed by camera
// id. It holds at most one session per camera. All reads return copies, so a
// caller never observes a session mid-update.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Get returns the session for cameraID.
func (r *Registry) Get(cameraID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[cameraID]
	return s, ok
}

// Put creates or replaces the session for s.CameraID.
func (r *Registry) Put(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.CameraID] = s
}

// Update applies fn to the stored session for cameraID under the write lock
// and returns the result. ok is false, and fn is not called, when there is
// no session.
func (r *Registry) Update(cameraID string, fn func(*Session)) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[cameraID]
	if !ok {
		return Session{}, false
	}
	fn(&s)
	s.CameraID = cameraID
	r.sessions[cameraID] = s
	return s, true
}

// Delete removes the session for cameraID and reports whether one existed.
func (r *Registry) Delete(cameraID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[cameraID]; !ok {
		return false
	}
	delete(r.sessions, cameraID)
	return true
}

// ListActive returns a snapshot of the active sessions, ordered by camera id.
func (r *Registry) ListActive() []Session {
	return r.list(func(s Session) bool { return s.Active() })
}

// ListAll returns a snapshot of every session, ordered by camera id.
func (r *Registry) ListAll() []Session {
	return r.list(nil)
}

// Len returns the number of sessions in any state.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions)
}

// ActiveCount returns the number of active sessions. Used for metrics.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.sessions {
		if s.Active() {
			n++
		}
	}
	return n
}

func (r *Registry) list(keep func(Session) bool) []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if keep == nil || keep(s) {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}
