package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taalim-io/gatekeeper/adapters/store"
	"github.com/taalim-io/gatekeeper/adapters/tokenizer"
	"github.com/taalim-io/gatekeeper/ports"
	"github.com/taalim-io/gatekeeper/service"
)

type nopPublisher struct{}

func (nopPublisher) PublishLogout(ctx context.Context, userID, tokenID string) error { return nil }
func (nopPublisher) PublishRegistered(ctx context.Context, userID, email string) error {
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *store.MemoryChallengeStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := ports.SystemClock{}
	challengeStore := store.NewMemoryChallengeStore(clock, 5*time.Minute)
	captchaService := service.NewCaptchaService(challengeStore, clock)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	authService := service.NewAuthService(
		tokenizer.NewJWTTokenizer(key),
		store.NewMemoryStore(),
		store.NewMemoryUserStore(),
		nopPublisher{},
	)

	return SetupRouter(authService, captchaService, zerolog.Nop()), challengeStore
}

func doJSON(router *gin.Engine, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out.Error.Code
}

// solveCaptcha issues a challenge, looks its answer up in the store and
// verifies it, returning the verified session ID.
func solveCaptcha(t *testing.T, router *gin.Engine, challengeStore *store.MemoryChallengeStore) string {
	t.Helper()

	w := doJSON(router, http.MethodPost, "/captcha/challenge", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var issued struct {
		SessionID string `json:"sessionId"`
		Question  string `json:"question"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.SessionID)
	require.NotEmpty(t, issued.Question)

	session, err := challengeStore.Get(context.Background(), issued.SessionID)
	require.NoError(t, err)

	w = doJSON(router, http.MethodPost, "/captcha/verify", gin.H{
		"sessionId": issued.SessionID,
		"answer":    session.Answer,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"verified":true}`, w.Body.String())

	return issued.SessionID
}

func findCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name && c.Value != "" {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestCaptchaVerifyErrors(t *testing.T) {
	router, challengeStore := newTestRouter(t)

	// Missing fields
	w := doJSON(router, http.MethodPost, "/captcha/verify", gin.H{"sessionId": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FIELDS", errorCode(t, w))

	// Unknown session
	w = doJSON(router, http.MethodPost, "/captcha/verify", gin.H{"sessionId": "x", "answer": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CAPTCHA_INVALID_SESSION", errorCode(t, w))

	// Wrong answer keeps the session alive for a retry
	wChal := doJSON(router, http.MethodPost, "/captcha/challenge", nil)
	var issued struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(wChal.Body.Bytes(), &issued))

	w = doJSON(router, http.MethodPost, "/captcha/verify", gin.H{"sessionId": issued.SessionID, "answer": "no"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CAPTCHA_WRONG_ANSWER", errorCode(t, w))

	session, err := challengeStore.Get(context.Background(), issued.SessionID)
	require.NoError(t, err)
	w = doJSON(router, http.MethodPost, "/captcha/verify", gin.H{"sessionId": issued.SessionID, "answer": session.Answer})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterRequiresCaptcha(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", gin.H{
		"email":    "x@example.com",
		"password": "pw",
		"name":     "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CAPTCHA_REQUIRED", errorCode(t, w))
}

func TestRegisterLoginRefreshLogoutFlow(t *testing.T) {
	router, challengeStore := newTestRouter(t)

	captchaID := solveCaptcha(t, router, challengeStore)

	w := doJSON(router, http.MethodPost, "/auth/register", gin.H{
		"email":            "tariq@example.com",
		"password":         "pw-123",
		"name":             "طارق",
		"captchaSessionId": captchaID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	var pair struct {
		AccessTokenExpiresIn  string `json:"accessTokenExpiresIn"`
		RefreshTokenExpiresIn string `json:"refreshTokenExpiresIn"`
	}
	require.NoError(t, json.Unmarshal(out["tokens"], &pair))
	assert.Equal(t, "15m", pair.AccessTokenExpiresIn)
	assert.Equal(t, "7d", pair.RefreshTokenExpiresIn)

	access := findCookie(t, w, accessTokenCookie)
	refresh := findCookie(t, w, refreshTokenCookie)

	// A verified captcha session is spent after one gated mutation
	w = doJSON(router, http.MethodPost, "/auth/register", gin.H{
		"email":            "second@example.com",
		"password":         "pw",
		"name":             "second",
		"captchaSessionId": captchaID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "CAPTCHA_REQUIRED", errorCode(t, w))

	// Access token grants entry to protected routes via header and cookie
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+access.Value)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/authorize", nil)
	req.AddCookie(access)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Refresh rotates the pair using only the cookie
	w = doJSON(router, http.MethodPost, "/auth/refresh", nil, refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := findCookie(t, w, refreshTokenCookie)
	assert.NotEqual(t, refresh.Value, rotated.Value)

	// The old refresh token is spent by rotation
	w = doJSON(router, http.MethodPost, "/auth/refresh", nil, refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Login works independently
	w = doJSON(router, http.MethodPost, "/auth/login", gin.H{
		"email":    "tariq@example.com",
		"password": "pw-123",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// Logout revokes the rotated token and clears cookies
	w = doJSON(router, http.MethodPost, "/auth/logout", nil, rotated)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/refresh", nil, rotated)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/login", gin.H{
		"email":    "nobody@example.com",
		"password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, w))
}

func TestLogoutWithoutSession(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConcurrentGatedRegistration(t *testing.T) {
	router, challengeStore := newTestRouter(t)

	captchaID := solveCaptcha(t, router, challengeStore)

	emails := []string{"one@example.com", "two@example.com"}
	codes := make(chan int, len(emails))
	var wg sync.WaitGroup
	for i := range emails {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			w := doJSON(router, http.MethodPost, "/auth/register", gin.H{
				"email":            emails[n],
				"password":         "pw",
				"name":             "user",
				"captchaSessionId": captchaID,
			})
			codes <- w.Code
		}(i)
	}
	wg.Wait()
	close(codes)

	succeeded := 0
	for code := range codes {
		if code == http.StatusOK {
			succeeded++
		} else {
			assert.Equal(t, http.StatusBadRequest, code)
		}
	}
	assert.Equal(t, 1, succeeded, "two simultaneous gated requests must not both pass")
}
