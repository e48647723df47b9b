package ports

import (
	"context"

	"github.com/taalim-io/gatekeeper/core"
)

// UserStore persists platform accounts
type UserStore interface {
	// Create stores a new user. A duplicate email yields core.ErrEmailTaken.
	Create(ctx context.Context, user *core.User) error

	// GetByEmail looks a user up by email, core.ErrUserNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*core.User, error)

	// GetByID looks a user up by ID, core.ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*core.User, error)
}
