package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taalim-io/gatekeeper/core"
)

func TestMemoryUserStore(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()

	user := &core.User{ID: "u1", Email: "lina@example.com", Name: "lina", Role: "student"}
	require.NoError(t, s.Create(ctx, user))

	byEmail, err := s.GetByEmail(ctx, "LINA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", byEmail.ID)

	byID, err := s.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "lina@example.com", byID.Email)

	// Duplicate email is rejected regardless of case
	err = s.Create(ctx, &core.User{ID: "u2", Email: "Lina@Example.com"})
	assert.ErrorIs(t, err, core.ErrEmailTaken)

	_, err = s.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
	_, err = s.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
}

func TestMemoryUserStoreReturnsCopies(t *testing.T) {
	s := NewMemoryUserStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &core.User{ID: "u1", Email: "a@b.c", Name: "before"}))

	got, err := s.GetByID(ctx, "u1")
	require.NoError(t, err)
	got.Name = "after"

	again, err := s.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "before", again.Name)
}
