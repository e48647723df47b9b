package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/ports"
)

const (
	// DefaultAccessTTL is the default lifetime of access tokens
	DefaultAccessTTL = 15 * time.Minute

	// DefaultRefreshTTL is the default lifetime of refresh tokens
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// RoleStudent is the role assigned to self-registered accounts
	RoleStudent = "student"
)

// TokenBundle carries a freshly issued token pair together with its
// lifetime descriptors.
type TokenBundle struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	Pair         core.TokenPair
}

// AuthService handles registration, login and the token lifecycle
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	users     ports.UserStore
	eventPub  ports.EventPublisher

	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	users ports.UserStore,
	eventPub ports.EventPublisher,
) *AuthService {
	return &AuthService{
		tokenizer:  tokenizer,
		store:      store,
		users:      users,
		eventPub:   eventPub,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
	}
}

// SetTokenTTLs overrides the default token lifetimes
func (s *AuthService) SetTokenTTLs(access, refresh time.Duration) {
	s.accessTTL = access
	s.refreshTTL = refresh
}

// Register creates a new student account and issues its first token pair.
// The captcha gate has already consumed a verified challenge session by the
// time this runs.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*core.User, *TokenBundle, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" || strings.TrimSpace(name) == "" {
		return nil, nil, core.ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &core.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         RoleStudent,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	if err := s.eventPub.PublishRegistered(ctx, user.ID, user.Email); err != nil {
		// The account exists either way; sibling services catch up later.
		log.Warn().Err(err).Str("user", user.ID).Msg("failed to publish registration event")
	}

	bundle, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	return user, bundle, nil
}

// Login authenticates a user by email and password
func (s *AuthService) Login(ctx context.Context, email, password string) (*core.User, *TokenBundle, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, nil, core.ErrMissingFields
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, nil, core.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, nil, core.ErrInvalidCredentials
	}

	bundle, err := s.issueTokens(user.ID, user.Role)
	if err != nil {
		return nil, nil, err
	}

	return user, bundle, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (*TokenBundle, error) {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	if time.Now().After(session.RefreshExpiry) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	// Invalidate the old refresh token for its remaining lifetime
	remainingTime := time.Until(session.RefreshExpiry)
	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return nil, fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.issueTokens(session.UserID, session.Role)
}

// Logout invalidates a refresh token. The token is revoked even when it has
// already expired, so it cannot be replayed against skewed clocks.
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}

	remainingTime := time.Until(session.RefreshExpiry)
	if remainingTime <= 0 {
		remainingTime = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remainingTime); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.UserID, session.RefreshID); err != nil {
		// The token is already invalidated, which is the critical part
		log.Warn().Err(err).Str("user", session.UserID).Msg("failed to publish logout event")
	}

	return nil
}

// ValidateAccessToken parses and validates an access token, rejecting tokens
// whose linked refresh token has been invalidated.
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if time.Now().After(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

func (s *AuthService) issueTokens(userID, role string) (*TokenBundle, error) {
	now := time.Now()
	session := &core.Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		Role:          role,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &TokenBundle{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.accessTTL,
		RefreshTTL:   s.refreshTTL,
		Pair: core.TokenPair{
			AccessTokenExpiresIn:  core.FormatExpiry(s.accessTTL),
			RefreshTokenExpiresIn: core.FormatExpiry(s.refreshTTL),
		},
	}, nil
}
