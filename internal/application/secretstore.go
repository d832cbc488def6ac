package application

import (
	"sync"
	"time"
)

// SecretStore holds the vault master secret in memory so scheduled jobs can
// unlock the vault when they fire. The secret is never written to disk and
// expires ttl after it was put; a zero ttl never expires.
type SecretStore struct {
	mu      sync.RWMutex
	secret  string
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewSecretStore creates an empty SecretStore.
func NewSecretStore(ttl time.Duration) *SecretStore {
	return &SecretStore{ttl: ttl, now: time.Now}
}

// Put replaces the held secret and restarts its lifetime.
func (s *SecretStore) Put(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
	s.expires = time.Time{}
	if s.ttl > 0 {
		s.expires = s.now().Add(s.ttl)
	}
}

// Get returns the held secret, or false when none is held or it expired.
func (s *SecretStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return "", false
	}
	return s.secret, true
}

// Held reports whether a non-expired secret is available.
func (s *SecretStore) Held() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked()
}

// ExpiresAt returns when the held secret expires. Zero means no secret or no
// expiry.
func (s *SecretStore) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked() {
		return time.Time{}
	}
	return s.expires
}

// Clear drops the held secret.
func (s *SecretStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = ""
	s.expires = time.Time{}
}

func (s *SecretStore) validLocked() bool {
	if s.secret == "" {
		return false
	}
	return s.expires.IsZero() || s.now().Before(s.expires)
}
