package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/ports"
)

// DefaultSweepInterval is how often abandoned sessions are swept. Expiry is
// enforced synchronously on verify; the sweep only bounds memory growth.
const DefaultSweepInterval = time.Hour

// MemoryChallengeStore is an in-memory implementation of the ChallengeStore
// interface. Challenge sessions are short-lived and re-issuable, so losing
// them on restart is acceptable.
type MemoryChallengeStore struct {
	sessions map[string]*core.ChallengeSession
	mu       sync.Mutex
	clock    ports.Clock
	maxAge   time.Duration

	done chan struct{}
	once sync.Once
}

// NewMemoryChallengeStore creates a new in-memory challenge store. maxAge is
// the age beyond which the sweeper discards a session.
func NewMemoryChallengeStore(clock ports.Clock, maxAge time.Duration) *MemoryChallengeStore {
	return &MemoryChallengeStore{
		sessions: make(map[string]*core.ChallengeSession),
		clock:    clock,
		maxAge:   maxAge,
		done:     make(chan struct{}),
	}
}

// Put stores a new challenge session
func (s *MemoryChallengeStore) Put(ctx context.Context, session *core.ChallengeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// Get returns a copy of the session
func (s *MemoryChallengeStore) Get(ctx context.Context, id string) (core.ChallengeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return core.ChallengeSession{}, core.ErrCaptchaInvalidSession
	}
	return *session, nil
}

// Mutate applies fn to the stored session under the store lock
func (s *MemoryChallengeStore) Mutate(ctx context.Context, id string, fn func(session *core.ChallengeSession) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return core.ErrCaptchaInvalidSession
	}

	remove, err := fn(session)
	if remove {
		delete(s.sessions, id)
	}
	return err
}

// Consume deletes the session if and only if it is verified. The lookup and
// deletion happen under one lock acquisition, so concurrent consumers of the
// same session cannot both succeed.
func (s *MemoryChallengeStore) Consume(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || !session.Verified {
		return core.ErrCaptchaRequired
	}

	delete(s.sessions, id)
	return nil
}

// Delete removes the session if present
func (s *MemoryChallengeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Sweep removes every session older than maxAge and reports how many were
// removed.
func (s *MemoryChallengeStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.CreatedAt) > s.maxAge {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the given interval until Stop is called
func (s *MemoryChallengeStore) StartSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("swept abandoned challenge sessions")
				}
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the sweeper goroutine
func (s *MemoryChallengeStore) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Len reports the number of live sessions
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
