// Package session leases browser profile directories to capture runs. A
// profile holds an already authenticated browser state for one app; leasing
// keeps two concurrent runs from driving the same profile.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrSessionNotFound is returned when a session is not found.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when a session lease has expired.
	ErrSessionExpired = errors.New("session expired")

	// ErrProfileBusy is returned when the profile is leased to another run.
	ErrProfileBusy = errors.New("browser profile is in use")
)

// Session is a lease on a browser profile directory.
type Session struct {
	ID         uuid.UUID
	App        string
	ProfileDir string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// IsExpired checks if the lease has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Store is an in-memory lease table indexed by session ID and profile directory.
type Store struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*Session
	byProfile map[string]uuid.UUID
	// released is closed and replaced whenever a lease ends, waking waiters.
	released chan struct{}
}

// NewStore creates a new in-memory lease store.
func NewStore() *Store {
	return &Store{
		sessions:  make(map[uuid.UUID]*Session),
		byProfile: make(map[string]uuid.UUID),
		released:  make(chan struct{}),
	}
}

// TryLease records session unless its profile is held by a live lease. It
// returns a channel that is closed the next time any lease ends.
func (s *Store) TryLease(session *Session) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byProfile[session.ProfileDir]; ok {
		if held, exists := s.sessions[id]; exists && !held.IsExpired() {
			return s.released, ErrProfileBusy
		}
		s.removeLocked(id)
	}

	s.sessions[session.ID] = session
	s.byProfile[session.ProfileDir] = session.ID
	return s.released, nil
}

// Get retrieves a live lease.
func (s *Store) Get(sessionID uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Delete ends a lease.
func (s *Store) Delete(sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}
	s.removeLocked(sessionID)
	return nil
}

// Len returns the number of recorded leases, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes expired leases.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	now := time.Now()
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			s.removeLocked(id)
			removed++
		}
	}

	return removed
}

func (s *Store) removeLocked(id uuid.UUID) {
	session, ok := s.sessions[id]
	if !ok {
		return
	}
	delete(s.sessions, id)
	if s.byProfile[session.ProfileDir] == id {
		delete(s.byProfile, session.ProfileDir)
	}
	close(s.released)
	s.released = make(chan struct{})
}
