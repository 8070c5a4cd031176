package auth

import (
	"sync"
	"testing"
	"time"
)

func TestRevocationStore(t *testing.T) {
	s := NewRevocationStore()
	defer s.Close()

	if s.IsRevoked("jti-1") {
		t.Error("fresh store reports jti revoked")
	}

	s.Revoke("jti-1", time.Now().Add(time.Hour))
	if !s.IsRevoked("jti-1") {
		t.Error("revoked jti not reported")
	}
	if s.IsRevoked("jti-2") {
		t.Error("unrelated jti reported revoked")
	}
	if s.Count() != 1 {
		t.Errorf("count = %d, want 1", s.Count())
	}
}

func TestRevocationStoreCleanup(t *testing.T) {
	s := NewRevocationStore()
	defer s.Close()

	s.Revoke("stale", time.Now().Add(-time.Minute))
	s.Revoke("live", time.Now().Add(time.Hour))
	s.cleanup()

	if s.IsRevoked("stale") {
		t.Error("expired entry survived cleanup")
	}
	if !s.IsRevoked("live") {
		t.Error("live entry removed by cleanup")
	}
}

func TestRevocationStoreCloseTwice(t *testing.T) {
	s := NewRevocationStore()
	s.Close()
	s.Close() // must not panic
}

func TestRevocationStoreCloseConcurrent(t *testing.T) {
	s := NewRevocationStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
