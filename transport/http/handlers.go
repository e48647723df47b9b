package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/service"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// Handlers contains HTTP handlers for the captcha and auth endpoints
type Handlers struct {
	authService    *service.AuthService
	captchaService *service.CaptchaService
}

// NewHandlers creates new handlers
func NewHandlers(authService *service.AuthService, captchaService *service.CaptchaService) *Handlers {
	return &Handlers{
		authService:    authService,
		captchaService: captchaService,
	}
}

// UserResponse represents the public view of an account
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// CaptchaChallenge handles challenge issuance. No request body is required.
func (h *Handlers) CaptchaChallenge(c *gin.Context) {
	id, question, err := h.captchaService.CreateChallenge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": id,
		"question":  question,
	})
}

// CaptchaVerify handles answer verification
func (h *Handlers) CaptchaVerify(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId" binding:"required"`
		Answer    string `json:"answer" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, core.ErrMissingFields)
		return
	}

	if err := h.captchaService.Verify(c.Request.Context(), req.SessionID, req.Answer); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// Register handles the registration request. The captcha gate has already
// consumed the verified challenge session.
func (h *Handlers) Register(c *gin.Context) {
	var req struct {
		Email            string `json:"email" form:"email" binding:"required"`
		Password         string `json:"password" form:"password" binding:"required"`
		Name             string `json:"name" form:"name" binding:"required"`
		CaptchaSessionID string `json:"captchaSessionId" form:"captchaSessionId"`
	}

	if err := bindJSONOrForm(c, &req); err != nil {
		writeError(c, core.ErrMissingFields)
		return
	}

	user, bundle, err := h.authService.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}

	setTokenCookies(c, bundle)
	c.JSON(http.StatusOK, gin.H{
		"user":   userResponse(user),
		"tokens": bundle.Pair,
	})
}

// Login handles the login request
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, core.ErrMissingFields)
		return
	}

	user, bundle, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	setTokenCookies(c, bundle)
	c.JSON(http.StatusOK, gin.H{
		"user":   userResponse(user),
		"tokens": bundle.Pair,
	})
}

// Refresh rotates the token pair. The request carries no body; the refresh
// token travels in its cookie.
func (h *Handlers) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshTokenCookie)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing refresh token"})
		return
	}

	bundle, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		statusCode := http.StatusUnauthorized
		errorMsg := "invalid or expired refresh token"

		switch {
		case errors.Is(err, core.ErrTokenExpired):
			errorMsg = "refresh token expired"
		case errors.Is(err, core.ErrTokenInvalidated):
			errorMsg = "refresh token has been invalidated"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	setTokenCookies(c, bundle)
	c.JSON(http.StatusOK, gin.H{"tokens": bundle.Pair})
}

// Logout revokes the refresh token and clears the token cookies. A missing
// or already expired token still yields success; there is nothing left to
// revoke.
func (h *Handlers) Logout(c *gin.Context) {
	refreshToken, _ := c.Cookie(refreshTokenCookie)
	if refreshToken != "" {
		if err := h.authService.Logout(c.Request.Context(), refreshToken); err != nil {
			// A malformed token means no live session; anything else is a
			// store failure
			if !errors.Is(err, core.ErrInvalidToken) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to logout"})
				return
			}
		}
	}

	clearTokenCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns information about the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	userID := c.GetString("userID")

	c.JSON(http.StatusOK, gin.H{
		"id":   userID,
		"role": c.GetString("userRole"),
	})
}

// Authorize reports whether the caller holds a valid access token. The auth
// middleware has already validated it by the time this runs.
func (h *Handlers) Authorize(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"id":         c.GetString("userID"),
	})
}

func userResponse(user *core.User) UserResponse {
	return UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	}
}

func setTokenCookies(c *gin.Context, bundle *service.TokenBundle) {
	c.SetCookie(accessTokenCookie, bundle.AccessToken, int(bundle.AccessTTL.Seconds()), "/", "", false, true)
	c.SetCookie(refreshTokenCookie, bundle.RefreshToken, int(bundle.RefreshTTL.Seconds()), "/", "", false, true)
}

func clearTokenCookies(c *gin.Context) {
	c.SetCookie(accessTokenCookie, "", -1, "/", "", false, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/", "", false, true)
}

// bindJSONOrForm binds a JSON body with buffering (so middleware may have
// bound it already) or falls back to form binding for multipart requests.
func bindJSONOrForm(c *gin.Context, obj interface{}) error {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		return c.ShouldBindBodyWith(obj, binding.JSON)
	}
	return c.ShouldBind(obj)
}

// writeError maps client-correctable coded errors to HTTP 400 with their
// code and localized message; everything else is an internal failure.
func writeError(c *gin.Context, err error) {
	var coded *core.Error
	if errors.As(err, &coded) {
		c.JSON(http.StatusBadRequest, gin.H{"error": coded})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
