package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
	"go.uber.org/zap"
)

const ctxIssuerID = "issuerID"

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(authService *service.AuthService, errs errorWriter) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			errs.abort(c, core.ErrInvalidToken)
			return
		}

		claims, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			errs.abort(c, err)
			return
		}

		c.Set(ctxIssuerID, claims.IssuerID)
		c.Next()
	}
}

// RequestLogger logs one line per request
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
