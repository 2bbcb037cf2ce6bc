package shiprocket

import (
	"sync"
	"time"
)

// TokenTTL is how long a login token is trusted before re-authenticating.
const TokenTTL = 240 * time.Hour

// Session holds the bearer token of one Client. Concurrent refreshes may log in twice;
// the last stored token wins and readers never see a half-written value.
type Session struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewSession(now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	return &Session{now: now}
}

// Token returns the cached token while it is still valid.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

func (s *Session) Store(token string, ttl time.Duration) {
	s.mu.Lock()
	s.token = token
	s.expiresAt = s.now().Add(ttl)
	s.mu.Unlock()
}

func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// Reset drops the cached token.
func (s *Session) Reset() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}
