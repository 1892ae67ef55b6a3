package serve

import (
	"sync"
	"time"
)

// sessionEntry binds a session token to the identity that authenticated
// it, until it expires.
type sessionEntry struct {
	identity string
	expires  time.Time
}

// SessionStore maps the appliance's opaque session token to the identity
// it was issued for. It replaces the teacher's JWT-backed TokenService
// (auth.TokenService) with the simpler shape this framework's session
// lookup step needs: the token itself is opaque and issued elsewhere (by
// the appliance's own authentication flow), so there is no signing or
// claims payload to verify here, only a bounded-lifetime lookup table.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
}

// NewSessionStore returns an empty store whose entries expire after ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
	}
}

// Put records identity as authenticated under token, resetting its
// expiration.
func (s *SessionStore) Put(token, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = sessionEntry{identity: identity, expires: time.Now().Add(s.ttl)}
}

// Lookup returns the identity bound to token, and whether it was found
// and still unexpired. An expired entry is treated as a miss and evicted.
func (s *SessionStore) Lookup(token string) (string, bool) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Now().After(entry.expires) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return "", false
	}
	return entry.identity, true
}

// Delete forgets a session, e.g. on explicit logout.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
