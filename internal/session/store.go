// Package session tracks per-session prompt history.
package session

import (
	"sync"
	"time"
)

// session is one session's state. Appends lock the session, not the store,
// so concurrent traffic on distinct sessions never serializes.
type session struct {
	mu         sync.Mutex
	history    []string
	seen       map[string]struct{}
	lastActive time.Time
}

// Store is a process-wide mapping from session ID to ordered prompt history.
// Appends are de-duplicated within a session; sessions are created lazily on
// first use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*session),
	}
}

// get returns the session for the ID, creating it if needed.
func (s *Store) get(sessionID string) *session {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}
	sess = &session{seen: make(map[string]struct{})}
	s.sessions[sessionID] = sess
	return sess
}

// Record appends a prompt to the session's history unless it is already
// present. Returns true when the prompt was appended.
func (s *Store) Record(sessionID, prompt string) bool {
	sess := s.get(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastActive = time.Now()
	if _, dup := sess.seen[prompt]; dup {
		return false
	}
	sess.seen[prompt] = struct{}{}
	sess.history = append(sess.history, prompt)
	return true
}

// History returns a copy of the session's prompt history in submission
// order. Unknown session IDs yield an empty slice, never an error.
func (s *Store) History(sessionID string) []string {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return []string{}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]string, len(sess.history))
	copy(out, sess.history)
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle removes sessions whose last activity is older than ttl and
// returns how many were evicted.
func (s *Store) EvictIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastActive.Before(cutoff)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
