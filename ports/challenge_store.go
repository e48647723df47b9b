package ports

import (
	"context"

	"github.com/taalim-io/gatekeeper/core"
)

// ChallengeStore holds active challenge sessions keyed by identifier.
//
// Mutate and Consume run their whole read-modify-write sequence under the
// store's own synchronization: two concurrent Consume calls for the same
// identifier must never both succeed.
type ChallengeStore interface {
	// Put stores a new challenge session.
	Put(ctx context.Context, session *core.ChallengeSession) error

	// Get returns a copy of the session, or core.ErrCaptchaInvalidSession.
	Get(ctx context.Context, id string) (core.ChallengeSession, error)

	// Mutate applies fn to the stored session atomically. When fn returns
	// remove=true the session is deleted regardless of fn's error. Absent
	// sessions yield core.ErrCaptchaInvalidSession.
	Mutate(ctx context.Context, id string, fn func(s *core.ChallengeSession) (remove bool, err error)) error

	// Consume deletes the session if and only if it is verified. A missing
	// or unverified session yields core.ErrCaptchaRequired.
	Consume(ctx context.Context, id string) error

	// Delete removes the session if present.
	Delete(ctx context.Context, id string) error
}
