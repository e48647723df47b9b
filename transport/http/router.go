package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/taalim-io/gatekeeper/service"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, captchaService *service.CaptchaService, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	handlers := NewHandlers(authService, captchaService)

	// Captcha routes
	captcha := router.Group("/captcha")
	{
		captcha.POST("/challenge", handlers.CaptchaChallenge)
		captcha.POST("/verify", handlers.CaptchaVerify)
	}

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/register", CaptchaGate(captchaService), handlers.Register)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
