package store

import (
	"context"
	"strings"
	"sync"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/ports"
)

// MemoryUserStore is an in-memory implementation of the UserStore interface
type MemoryUserStore struct {
	byID    map[string]*core.User
	byEmail map[string]string
	mu      sync.RWMutex
}

// NewMemoryUserStore creates a new in-memory user store
func NewMemoryUserStore() ports.UserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*core.User),
		byEmail: make(map[string]string),
	}
}

// Create stores a new user
func (s *MemoryUserStore) Create(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := s.byEmail[email]; exists {
		return core.ErrEmailTaken
	}

	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[email] = user.ID
	return nil
}

// GetByEmail looks a user up by email
func (s *MemoryUserStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	cp := *s.byID[id]
	return &cp, nil
}

// GetByID looks a user up by ID
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}

	cp := *user
	return &cp, nil
}
