package server

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/lox/diag"
	"github.com/chazu/lox/driver"
)

// Session is an evaluation workspace with its own globals. Its driver must
// only be used on the worker goroutine.
type Session struct {
	ID      string
	Name    string
	Created time.Time

	driver *driver.Driver
	out    *bytes.Buffer
	diags  *diag.Collector
}

func newSession(id, name string) *Session {
	s := &Session{
		ID:      id,
		Name:    name,
		Created: time.Now(),
		out:     &bytes.Buffer{},
		diags:   &diag.Collector{},
	}
	s.driver = driver.New(s.out, s.diags)
	return s
}

// SessionStore manages workspace sessions.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates a new session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
	}
}

// Create creates a new session with an optional name.
func (s *SessionStore) Create(name string) *Session {
	session := newSession(uuid.NewString(), name)

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()

	log.Infof("created session %s", session.ID)
	return session
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok
}

// Destroy removes a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		log.Infof("destroyed session %s", id)
	}
	return ok
}

// List returns all sessions, oldest first.
func (s *SessionStore) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}
