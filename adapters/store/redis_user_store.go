package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/ports"
)

// RedisUserStore is a Redis implementation of the UserStore interface.
// Users are stored as JSON under an ID key with a separate email index.
type RedisUserStore struct {
	client *redis.Client
	prefix string
}

// NewRedisUserStore creates a new Redis user store
func NewRedisUserStore(client *redis.Client) ports.UserStore {
	return &RedisUserStore{
		client: client,
		prefix: "gatekeeper:user:",
	}
}

func (s *RedisUserStore) idKey(id string) string { return s.prefix + "id:" + id }

func (s *RedisUserStore) emailKey(email string) string {
	return s.prefix + "email:" + strings.ToLower(email)
}

// Create stores a new user, claiming the email index first so two
// registrations with the same email cannot both succeed.
func (s *RedisUserStore) Create(ctx context.Context, user *core.User) error {
	claimed, err := s.client.SetNX(ctx, s.emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to claim email: %w", err)
	}
	if !claimed {
		return core.ErrEmailTaken
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.client.Set(ctx, s.idKey(user.ID), payload, 0).Err(); err != nil {
		// Roll the index back so the email is not left claimed by a
		// record that was never written
		s.client.Del(ctx, s.emailKey(user.Email))
		return fmt.Errorf("failed to store user: %w", err)
	}

	return nil
}

// GetByEmail looks a user up by email
func (s *RedisUserStore) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve email: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID looks a user up by ID
func (s *RedisUserStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	payload, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	var user core.User
	if err := json.Unmarshal(payload, &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	return &user, nil
}

var _ ports.UserStore = (*RedisUserStore)(nil)
