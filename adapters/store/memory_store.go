package store

import (
	"context"
	"sync"
	"time"

	"github.com/taalim-io/gatekeeper/ports"
)

// MemoryStore is an in-memory implementation of the revocation Store interface
type MemoryStore struct {
	invalidatedTokens map[string]time.Time
	mu                sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return &MemoryStore{
		invalidatedTokens: make(map[string]time.Time),
	}
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime := time.Now().Add(expiry)
	s.invalidatedTokens[tokenID] = expiryTime

	// Drop the record once the invalidation itself expires
	go func() {
		time.Sleep(expiry)

		s.mu.Lock()
		defer s.mu.Unlock()

		if storedExpiry, exists := s.invalidatedTokens[tokenID]; exists && !storedExpiry.After(expiryTime) {
			delete(s.invalidatedTokens, tokenID)
		}
	}()

	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}

	if time.Now().After(expiryTime) {
		return false, nil
	}

	return true, nil
}
