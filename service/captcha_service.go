package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/ports"
)

const (
	// DefaultChallengeTTL is the window in which a challenge may be solved
	DefaultChallengeTTL = 5 * time.Minute

	// DefaultMaxAttempts is the number of verification attempts allowed
	// before a session is locked and deleted
	DefaultMaxAttempts = 3

	// challengeIDBytes gives 256 bits of entropy, enough that identifier
	// collisions need no handling
	challengeIDBytes = 32
)

// CaptchaService issues arithmetic challenges and verifies submitted answers
type CaptchaService struct {
	store ports.ChallengeStore
	clock ports.Clock

	ttl         time.Duration
	maxAttempts int
}

// NewCaptchaService creates a new captcha service
func NewCaptchaService(store ports.ChallengeStore, clock ports.Clock) *CaptchaService {
	return &CaptchaService{
		store:       store,
		clock:       clock,
		ttl:         DefaultChallengeTTL,
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetLimits overrides the default challenge lifetime and attempt limit
func (s *CaptchaService) SetLimits(ttl time.Duration, maxAttempts int) {
	s.ttl = ttl
	s.maxAttempts = maxAttempts
}

// CreateChallenge generates a new challenge, stores its session and returns
// the opaque session identifier together with the localized question.
func (s *CaptchaService) CreateChallenge(ctx context.Context) (string, string, error) {
	challenge, err := GenerateChallenge()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate challenge: %w", err)
	}

	idBytes := make([]byte, challengeIDBytes)
	if _, err := rand.Read(idBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate session id: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(idBytes)

	session := &core.ChallengeSession{
		ID:        id,
		Answer:    challenge.Answer,
		CreatedAt: s.clock.Now(),
	}

	if err := s.store.Put(ctx, session); err != nil {
		return "", "", fmt.Errorf("failed to store challenge session: %w", err)
	}

	return id, challenge.Question, nil
}

// Verify checks a submitted answer against the stored session.
//
// A locked or expired session is deleted on the spot; a wrong answer keeps
// the session so the caller may retry until the attempt limit. The third
// consecutive wrong answer locks the session immediately.
func (s *CaptchaService) Verify(ctx context.Context, id, answer string) error {
	now := s.clock.Now()

	return s.store.Mutate(ctx, id, func(cs *core.ChallengeSession) (bool, error) {
		if cs.Attempts >= s.maxAttempts {
			return true, core.ErrCaptchaTooManyAttempts
		}
		if now.Sub(cs.CreatedAt) > s.ttl {
			return true, core.ErrCaptchaExpired
		}

		cs.Attempts++
		if strings.TrimSpace(answer) != cs.Answer {
			if cs.Attempts >= s.maxAttempts {
				return true, core.ErrCaptchaTooManyAttempts
			}
			return false, core.ErrCaptchaWrongAnswer
		}

		cs.Verified = true
		return false, nil
	})
}

// Consume spends a verified session on behalf of a gated action. The store
// deletes the session atomically, so a session passes the gate at most once.
func (s *CaptchaService) Consume(ctx context.Context, id string) error {
	if id == "" {
		return core.ErrCaptchaRequired
	}
	return s.store.Consume(ctx, id)
}

var operators = []struct {
	symbol string
	ranges [2][2]int // inclusive [min,max] per operand
	apply  func(a, b int) int
}{
	{"+", [2][2]int{{1, 50}, {1, 50}}, func(a, b int) int { return a + b }},
	{"-", [2][2]int{{20, 69}, {1, 20}}, func(a, b int) int { return a - b }},
	{"×", [2][2]int{{1, 10}, {1, 10}}, func(a, b int) int { return a * b }},
}

// GenerateChallenge produces a human-solvable arithmetic question. The
// operator is chosen uniformly; operand ranges are operator-specific so the
// result stays small and non-negative. Subtraction operands are re-drawn in
// the unlikely case the ranges produce a negative result.
func GenerateChallenge() (*core.Challenge, error) {
	opIdx, err := randInt(0, len(operators)-1)
	if err != nil {
		return nil, err
	}
	op := operators[opIdx]

	var a, b int
	for {
		a, err = randInt(op.ranges[0][0], op.ranges[0][1])
		if err != nil {
			return nil, err
		}
		b, err = randInt(op.ranges[1][0], op.ranges[1][1])
		if err != nil {
			return nil, err
		}
		if op.apply(a, b) >= 0 {
			break
		}
	}

	result := op.apply(a, b)
	return &core.Challenge{
		Operand1: a,
		Operand2: b,
		Operator: op.symbol,
		Question: fmt.Sprintf("ما هو ناتج: %d %s %d ؟", a, op.symbol, b),
		Answer:   strconv.Itoa(result),
	}, nil
}

// randInt returns a uniform random int in [min, max] from crypto/rand
func randInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + min, nil
}
