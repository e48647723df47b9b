package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRenewalInterval is how often the background loop silently renews
// the access credential while authenticated.
const DefaultRenewalInterval = 10 * time.Minute

// Profile is the client-side view of the authenticated user
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Config configures a Manager.
//
// With SilentRenewalFailures set, a failed renewal is not surfaced and never
// forces a logout; the next request's 401 handling or an explicit logout
// settles the session's fate. When unset, a failed renewal clears the local
// session.
type Config struct {
	BaseURL               string
	RenewalInterval       time.Duration
	Thresholds            Thresholds
	SilentRenewalFailures bool
	HTTPClient            *http.Client
}

// DefaultConfig returns the default client configuration for the given API
// base URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:               baseURL,
		RenewalInterval:       DefaultRenewalInterval,
		Thresholds:            DefaultThresholds(),
		SilentRenewalFailures: true,
	}
}

// Manager maintains the client side of the session lifecycle: it holds the
// profile and TokenInfo, persists them durably, renews the access credential
// silently in the background and reactively on 401 responses, and clears
// everything on logout.
type Manager struct {
	cfg     Config
	http    *http.Client
	storage Storage
	log     zerolog.Logger

	mu      sync.RWMutex
	profile *Profile
	info    *TokenInfo

	renewing  atomic.Bool
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	onRenewed func(TokenInfo)

	now func() time.Time
}

// NewManager creates a Manager backed by the given durable storage. Session
// state persisted by an earlier run is restored.
func NewManager(cfg Config, storage Storage, log zerolog.Logger) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		// The refresh credential rides in a cookie, so the client needs a jar
		jar, _ := cookiejar.New(nil)
		httpClient = &http.Client{Jar: jar}
	}
	if cfg.RenewalInterval <= 0 {
		cfg.RenewalInterval = DefaultRenewalInterval
	}

	m := &Manager{
		cfg:     cfg,
		http:    httpClient,
		storage: storage,
		log:     log,
		done:    make(chan struct{}),
		now:     time.Now,
	}
	m.restore()
	return m
}

// OnRenewed registers a listener invoked after every successful renewal,
// e.g. to show a transient confirmation.
func (m *Manager) OnRenewed(fn func(TokenInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRenewed = fn
}

// Authenticated reports whether a session is active
func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profile != nil
}

// Profile returns the authenticated user's profile, if any
func (m *Manager) Profile() (Profile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return Profile{}, false
	}
	return *m.profile, true
}

// TokenInfo returns the current token freshness descriptor, if any
func (m *Manager) TokenInfo() (TokenInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.info == nil {
		return TokenInfo{}, false
	}
	return *m.info, true
}

// AccessWarningActive reports whether the UI warning for a soon-to-expire
// access credential should be shown.
func (m *Manager) AccessWarningActive() bool {
	info, ok := m.TokenInfo()
	if !ok {
		return false
	}
	return info.AccessExpiringSoon(m.now(), m.cfg.Thresholds)
}

type tokensPayload struct {
	AccessTokenExpiresIn  string `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn string `json:"refreshTokenExpiresIn"`
}

type sessionPayload struct {
	User   Profile       `json:"user"`
	Tokens tokensPayload `json:"tokens"`
}

// Login authenticates and persists the returned profile and token info
func (m *Manager) Login(ctx context.Context, email, password string) error {
	body := map[string]string{"email": email, "password": password}

	var payload sessionPayload
	if err := m.postJSON(ctx, "/auth/login", body, &payload); err != nil {
		return err
	}

	m.adoptSession(payload)
	return nil
}

// Register creates an account behind the captcha gate and persists the
// returned session.
func (m *Manager) Register(ctx context.Context, email, password, name, captchaSessionID string) error {
	body := map[string]string{
		"email":            email,
		"password":         password,
		"name":             name,
		"captchaSessionId": captchaSessionID,
	}

	var payload sessionPayload
	if err := m.postJSON(ctx, "/auth/register", body, &payload); err != nil {
		return err
	}

	m.adoptSession(payload)
	return nil
}

// Refresh silently renews the token pair. Concurrent calls coalesce: while a
// renewal is in flight, further calls return immediately without a second
// request. Failures follow the configured silent-failure policy.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.renewing.CompareAndSwap(false, true) {
		return nil
	}
	defer m.renewing.Store(false)

	var payload struct {
		Tokens tokensPayload `json:"tokens"`
	}
	err := m.postJSON(ctx, "/auth/refresh", nil, &payload)
	if err != nil {
		if m.cfg.SilentRenewalFailures {
			m.log.Debug().Err(err).Msg("token renewal failed, ignoring")
			return nil
		}
		m.log.Warn().Err(err).Msg("token renewal failed, clearing session")
		m.clearLocal()
		return err
	}

	info := TokenInfo{
		AccessTokenExpiresIn:  payload.Tokens.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: payload.Tokens.RefreshTokenExpiresIn,
		ReceivedAt:            m.now(),
	}

	m.mu.Lock()
	m.info = &info
	fn := m.onRenewed
	m.mu.Unlock()

	m.persistTokenInfo(info)

	if fn != nil {
		fn(info)
	}
	return nil
}

// Logout ends the session. The server call is best effort; local state is
// cleared unconditionally.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.postJSON(ctx, "/auth/logout", nil, nil); err != nil {
		m.log.Debug().Err(err).Msg("server logout failed, clearing local state anyway")
	}
	m.clearLocal()
}

// Do performs an HTTP request and, on an authentication failure, attempts a
// single silent renewal before retrying the request once.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	resp, err := m.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// A request body without GetBody cannot be replayed
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	if rerr := m.Refresh(req.Context()); rerr != nil {
		return resp, nil
	}
	if !m.Authenticated() {
		return resp, nil
	}

	resp.Body.Close()

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, berr
		}
		retry.Body = body
	}

	return m.http.Do(retry)
}

// Start launches the background renewal loop
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.cfg.RenewalInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if !m.Authenticated() {
						continue
					}
					// Errors already handled per the silent-failure policy
					_ = m.Refresh(context.Background())
				case <-m.done:
					return
				}
			}
		}()
	})
}

// Stop terminates the background renewal loop
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Manager) adoptSession(payload sessionPayload) {
	info := TokenInfo{
		AccessTokenExpiresIn:  payload.Tokens.AccessTokenExpiresIn,
		RefreshTokenExpiresIn: payload.Tokens.RefreshTokenExpiresIn,
		ReceivedAt:            m.now(),
	}
	profile := payload.User

	m.mu.Lock()
	m.profile = &profile
	m.info = &info
	m.mu.Unlock()

	m.storage.Set(KeyAuthenticated, "true")
	m.storage.Set(KeyRole, profile.Role)
	if raw, err := json.Marshal(profile); err == nil {
		m.storage.Set(KeyUser, string(raw))
	}
	m.persistTokenInfo(info)
}

func (m *Manager) persistTokenInfo(info TokenInfo) {
	if raw, err := json.Marshal(info); err == nil {
		m.storage.Set(KeyTokenInfo, string(raw))
	}
}

func (m *Manager) clearLocal() {
	m.mu.Lock()
	m.profile = nil
	m.info = nil
	m.mu.Unlock()

	for _, key := range SessionKeys() {
		m.storage.Delete(key)
	}
}

func (m *Manager) restore() {
	if flag, ok := m.storage.Get(KeyAuthenticated); !ok || flag != "true" {
		return
	}

	rawUser, ok := m.storage.Get(KeyUser)
	if !ok {
		return
	}
	var profile Profile
	if err := json.Unmarshal([]byte(rawUser), &profile); err != nil {
		return
	}

	m.profile = &profile

	if rawInfo, ok := m.storage.Get(KeyTokenInfo); ok {
		var info TokenInfo
		if err := json.Unmarshal([]byte(rawInfo), &info); err == nil {
			m.info = &info
		}
	}
}

func (m *Manager) postJSON(ctx context.Context, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error json.RawMessage `json:"error"`
		}
		if derr := json.NewDecoder(resp.Body).Decode(&apiErr); derr == nil && len(apiErr.Error) > 0 {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
