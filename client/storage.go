package client

import (
	"encoding/json"
	"os"
	"sync"
)

// Durable storage keys. Everything listed in SessionKeys is cleared together
// on logout.
const (
	KeyAuthenticated    = "auth"
	KeyRole             = "role"
	KeyUser             = "user"
	KeyTokenInfo        = "token_info"
	KeyWalletCache      = "wallet_cache"
	KeyProgressCache    = "progress_cache"
	KeyExamResultsCache = "exam_results_cache"
)

// SessionKeys returns every durable key tied to an authenticated session
func SessionKeys() []string {
	return []string{
		KeyAuthenticated,
		KeyRole,
		KeyUser,
		KeyTokenInfo,
		KeyWalletCache,
		KeyProgressCache,
		KeyExamResultsCache,
	}
}

// Storage is durable client-side key/value state
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is an in-memory Storage, primarily for tests
type MemoryStorage struct {
	data map[string]string
	mu   sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]string)}
}

func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// FileStorage persists keys as a JSON object in a single file, so session
// state survives process restarts.
type FileStorage struct {
	path string
	data map[string]string
	mu   sync.Mutex
}

// NewFileStorage opens (or creates) file-backed storage at path
func NewFileStorage(path string) (*FileStorage, error) {
	s := &FileStorage{
		path: path,
		data: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return s.flush()
}

func (s *FileStorage) flush() error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
