package session

import (
	"context"
	"sync"
	"time"

	"clause-agent/workflow"
)

// Session carries one user's conversation state plus the lock that
// serializes turns against it.
type Session struct {
	UserID         string
	State          *workflow.State
	LastActivityAt time.Time

	mu sync.Mutex
}

// Store keeps per-user conversation state in memory. Concurrent requests
// for the same user are serialized on the session lock so a turn always
// sees the history left by the previous one; requests for different users
// proceed independently.
type Store struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
}

func NewStore(inactivityTimeout time.Duration) *Store {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 30 * time.Minute
	}
	return &Store{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
	}
}

// get returns the session for userID, creating it on first use.
func (s *Store) get(userID string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[userID]; ok {
		return sess
	}
	sess = &Session{
		UserID:         userID,
		State:          workflow.NewState(),
		LastActivityAt: time.Now().UTC(),
	}
	s.sessions[userID] = sess
	return sess
}

// Update runs fn against the user's state under the session lock. The
// state passed to fn is the live one; mutations persist for later turns.
func (s *Store) Update(userID string, fn func(state *workflow.State) error) error {
	sess := s.get(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.LastActivityAt = time.Now().UTC()
	return fn(sess.State)
}

// Snapshot returns a deep copy of the user's state, creating an empty
// session when none exists yet.
func (s *Store) Snapshot(userID string) *workflow.State {
	sess := s.get(userID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.State.Clone()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor evicts sessions idle past the inactivity timeout until ctx
// is cancelled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.evictIdle()
			}
		}
	}()
}

func (s *Store) evictIdle() {
	cutoff := time.Now().UTC().Add(-s.inactivityTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.LastActivityAt.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, userID)
		}
	}
}
