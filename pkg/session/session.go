package session

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// Session is the record of the single currently active game.
type Session struct {
	Id      string
	App     string
	Started time.Time
}

func (s Session) IsEmpty() bool { return s.Id == "" }

// Short returns a shortened id for logs.
func (s Session) Short() string {
	if len(s.Id) < 8 {
		return s.Id
	}
	return s.Id[:8]
}

// Registry holds at most one game session.
// Only its owner registers and unregisters, anyone may read it.
type Registry struct {
	mu      sync.RWMutex
	current Session
}

// Register makes a new session for the app replacing the current one.
func (r *Registry) Register(app string) Session {
	s := Session{Id: uuid.Must(uuid.NewV4()).String(), App: app, Started: time.Now()}
	r.mu.Lock()
	r.current = s
	r.mu.Unlock()
	return s
}

// Unregister removes the current session, if any.
func (r *Registry) Unregister() (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.current
	r.current = Session{}
	return s, !s.IsEmpty()
}

func (r *Registry) Current() (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, !r.current.IsEmpty()
}

// IsCurrent tells whether the session with the id is still registered.
func (r *Registry) IsCurrent(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return id != "" && r.current.Id == id
}
