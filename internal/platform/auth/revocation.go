package auth

import (
	"sync"
	"time"
)

// RevocationStore tracks logged-out token JTIs until their natural expiry.
// Signed tokens cannot be invalidated early on their own, so logout records
// the JTI here and Middleware rejects it on subsequent requests. Entries are
// dropped once the token would have expired anyway. Thread-safe.
type RevocationStore struct {
	mu        sync.RWMutex
	entries   map[string]time.Time // JTI -> natural expiry
	done      chan struct{}
	closeOnce sync.Once
}

// NewRevocationStore creates a store and starts a background goroutine that
// sweeps expired entries every 5 minutes.
func NewRevocationStore() *RevocationStore {
	s := &RevocationStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Revoke marks a token JTI as revoked. expiresAt is the token's own expiry;
// after that time the entry is garbage.
func (s *RevocationStore) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = expiresAt
}

// IsRevoked reports whether the JTI has been revoked.
func (s *RevocationStore) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[jti]
	return ok
}

// Count returns the number of tracked revocations.
func (s *RevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once, including
// concurrently.
func (s *RevocationStore) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *RevocationStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *RevocationStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, expiresAt := range s.entries {
		if now.After(expiresAt) {
			delete(s.entries, jti)
		}
	}
}
