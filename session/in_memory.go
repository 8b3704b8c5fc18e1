package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/teamsmith/core"
)

// Store persists build session state keyed by session ID.
type Store interface {
	// Save stores a snapshot of the session state.
	Save(state *core.SessionState) error
	// Get returns the stored session state or an error when unknown.
	Get(sessionID string) (*core.SessionState, error)
	// List returns the IDs of all stored sessions.
	List() []string
	// Delete removes a session. Deleting an unknown session is a no-op.
	Delete(sessionID string)
}

// InMemoryStore is a volatile Store keeping session state in a process local
// map. It is safe for concurrent access and best suited for tests, the CLI
// and ephemeral demo setups. Snapshots are cloned on both Save and Get so
// callers cannot mutate stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.SessionState
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.SessionState)}
}

// Save stores a clone of the provided session state snapshot.
func (s *InMemoryStore) Save(state *core.SessionState) error {
	if state == nil || state.ID == "" {
		return fmt.Errorf("session state must have an id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state.ID] = state.Clone()

	return nil
}

// Get returns a clone of the stored session state.
func (s *InMemoryStore) Get(sessionID string) (*core.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q not found", sessionID)
	}

	return state.Clone(), nil
}

// List returns the IDs of all stored sessions in unspecified order.
func (s *InMemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}

	return ids
}

// Delete removes a session from the store.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
