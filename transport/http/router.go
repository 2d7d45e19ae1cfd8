package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/service"
	"go.uber.org/zap"
)

// SetupRouter sets up the Gin router. Internal error details are only
// returned to clients when dev is set.
func SetupRouter(authService *service.AuthService, log *zap.Logger, dev bool) *gin.Engine {
	if !dev {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log.Named("http")))

	errs := errorWriter{log: log.Named("http"), dev: dev}
	handlers := NewAuthHandlers(authService, errs)

	router.GET("/healthz", Health)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/nonce", handlers.Nonce)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService, errs))
	{
		api.GET("/me", handlers.Me)
	}

	return router
}
