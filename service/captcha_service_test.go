package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taalim-io/gatekeeper/adapters/store"
	"github.com/taalim-io/gatekeeper/core"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCaptcha(t *testing.T) (*CaptchaService, *store.MemoryChallengeStore, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	challengeStore := store.NewMemoryChallengeStore(clock, DefaultChallengeTTL)
	return NewCaptchaService(challengeStore, clock), challengeStore, clock
}

func storedAnswer(t *testing.T, s *store.MemoryChallengeStore, id string) string {
	t.Helper()
	session, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return session.Answer
}

func TestGenerateChallenge(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 300; i++ {
		ch, err := GenerateChallenge()
		require.NoError(t, err)

		seen[ch.Operator] = true

		var want int
		switch ch.Operator {
		case "+":
			want = ch.Operand1 + ch.Operand2
			assert.GreaterOrEqual(t, ch.Operand1, 1)
			assert.LessOrEqual(t, ch.Operand1, 50)
			assert.GreaterOrEqual(t, ch.Operand2, 1)
			assert.LessOrEqual(t, ch.Operand2, 50)
		case "-":
			want = ch.Operand1 - ch.Operand2
			assert.GreaterOrEqual(t, ch.Operand1, 20)
			assert.LessOrEqual(t, ch.Operand1, 69)
			assert.GreaterOrEqual(t, ch.Operand2, 1)
			assert.LessOrEqual(t, ch.Operand2, 20)
		case "×":
			want = ch.Operand1 * ch.Operand2
			assert.GreaterOrEqual(t, ch.Operand1, 1)
			assert.LessOrEqual(t, ch.Operand1, 10)
			assert.GreaterOrEqual(t, ch.Operand2, 1)
			assert.LessOrEqual(t, ch.Operand2, 10)
		default:
			t.Fatalf("unexpected operator %q", ch.Operator)
		}

		assert.Equal(t, strconv.Itoa(want), ch.Answer)
		assert.GreaterOrEqual(t, want, 0, "%d %s %d", ch.Operand1, ch.Operator, ch.Operand2)

		// The displayed question renders the same operands and operator
		assert.Contains(t, ch.Question, strconv.Itoa(ch.Operand1))
		assert.Contains(t, ch.Question, strconv.Itoa(ch.Operand2))
		assert.Contains(t, ch.Question, ch.Operator)
		assert.True(t, strings.HasPrefix(ch.Question, "ما هو ناتج:"), "question %q", ch.Question)
	}

	// 300 draws make missing an operator vanishingly unlikely
	assert.Len(t, seen, 3)
}

func TestCreateAndVerify(t *testing.T) {
	svc, challengeStore, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, question, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NotEmpty(t, question)

	answer := storedAnswer(t, challengeStore, id)
	require.NoError(t, svc.Verify(ctx, id, answer))

	session, err := challengeStore.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, session.Verified)
	assert.Equal(t, 1, session.Attempts)
}

func TestVerifyTrimsSubmittedAnswer(t *testing.T) {
	svc, challengeStore, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)

	answer := storedAnswer(t, challengeStore, id)
	assert.NoError(t, svc.Verify(ctx, id, "  "+answer+" \n"))
}

func TestVerifyUnknownSession(t *testing.T) {
	svc, _, _ := newTestCaptcha(t)

	err := svc.Verify(context.Background(), "no-such-session", "42")
	assert.ErrorIs(t, err, core.ErrCaptchaInvalidSession)
}

func TestVerifyLockout(t *testing.T) {
	svc, challengeStore, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)
	answer := storedAnswer(t, challengeStore, id)
	wrong := answer + "1"

	assert.ErrorIs(t, svc.Verify(ctx, id, wrong), core.ErrCaptchaWrongAnswer)
	assert.ErrorIs(t, svc.Verify(ctx, id, wrong), core.ErrCaptchaWrongAnswer)

	// The third wrong answer locks and deletes the session
	assert.ErrorIs(t, svc.Verify(ctx, id, wrong), core.ErrCaptchaTooManyAttempts)

	// Even the correct answer cannot succeed afterwards
	assert.ErrorIs(t, svc.Verify(ctx, id, answer), core.ErrCaptchaInvalidSession)
}

func TestVerifyExpired(t *testing.T) {
	svc, challengeStore, clock := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)
	answer := storedAnswer(t, challengeStore, id)

	clock.Advance(DefaultChallengeTTL + time.Second)

	assert.ErrorIs(t, svc.Verify(ctx, id, answer), core.ErrCaptchaExpired)

	// Expiry deleted the session
	assert.ErrorIs(t, svc.Verify(ctx, id, answer), core.ErrCaptchaInvalidSession)
}

func TestConsumeRequiresVerification(t *testing.T) {
	svc, _, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Consume(ctx, id), core.ErrCaptchaRequired)
	assert.ErrorIs(t, svc.Consume(ctx, ""), core.ErrCaptchaRequired)
	assert.ErrorIs(t, svc.Consume(ctx, "missing"), core.ErrCaptchaRequired)
}

func TestConsumeAtMostOnce(t *testing.T) {
	svc, challengeStore, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(ctx, id, storedAnswer(t, challengeStore, id)))

	const workers = 16
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.Consume(ctx, id)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, core.ErrCaptchaRequired)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one consumer may pass the gate")
}

func TestScenarioWrongAnswersThenLockout(t *testing.T) {
	svc, challengeStore, _ := newTestCaptcha(t)
	ctx := context.Background()

	id, _, err := svc.CreateChallenge(ctx)
	require.NoError(t, err)

	// Force a known answer to mirror the documented flow
	require.NoError(t, challengeStore.Mutate(ctx, id, func(s *core.ChallengeSession) (bool, error) {
		s.Answer = "15"
		return false, nil
	}))

	errs := make([]error, 0, 3)
	for i := 0; i < 3; i++ {
		errs = append(errs, svc.Verify(ctx, id, "5"))
	}
	assert.ErrorIs(t, errs[0], core.ErrCaptchaWrongAnswer)
	assert.ErrorIs(t, errs[1], core.ErrCaptchaWrongAnswer)
	assert.ErrorIs(t, errs[2], core.ErrCaptchaTooManyAttempts)

	assert.ErrorIs(t, svc.Verify(ctx, id, "15"), core.ErrCaptchaInvalidSession)
}
