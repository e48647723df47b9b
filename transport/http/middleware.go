package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog"

	"github.com/taalim-io/gatekeeper/core"
	"github.com/taalim-io/gatekeeper/service"
)

// AuthMiddleware creates middleware that validates access tokens from the
// Authorization header or, failing that, the access token cookie.
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(accessTokenCookie)
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing access token"})
			return
		}

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			}
			return
		}

		c.Set("userID", session.UserID)
		c.Set("userRole", session.Role)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// CaptchaGate requires the request to carry the identifier of a previously
// verified challenge session and consumes it before the handler runs. The
// consume is atomic, so a session passes the gate at most once even under
// concurrent requests.
func CaptchaGate(captcha *service.CaptchaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var probe struct {
			CaptchaSessionID string `json:"captchaSessionId" form:"captchaSessionId"`
		}

		if strings.HasPrefix(c.ContentType(), "application/json") {
			// Buffered bind so the handler can bind the same body again
			_ = c.ShouldBindBodyWith(&probe, binding.JSON)
		} else {
			probe.CaptchaSessionID = c.PostForm("captchaSessionId")
		}

		if err := captcha.Consume(c.Request.Context(), probe.CaptchaSessionID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": core.ErrCaptchaRequired})
			return
		}

		c.Next()
	}
}

// RequestLogger logs each request with zerolog
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
