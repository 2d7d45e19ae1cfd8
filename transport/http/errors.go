package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"go.uber.org/zap"
)

const msgUnauthorized = "Unauthorized"

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody under the "error" key
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

var knownErrors = []struct {
	err     error
	status  int
	message string
}{
	{core.ErrNonceNotFound, http.StatusUnauthorized, "Nonce not found"},
	{core.ErrNonceExpired, http.StatusUnauthorized, "Nonce expired"},
	{core.ErrInvalidDomain, http.StatusUnauthorized, "Invalid domain"},
	{core.ErrInvalidSignature, http.StatusUnauthorized, "Invalid signature"},
	{core.ErrInvalidRefreshToken, http.StatusUnauthorized, "Refresh token is used or does not exist"},
	{core.ErrMalformedMessage, http.StatusUnauthorized, msgUnauthorized},
	{core.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{core.ErrTokenNotFound, http.StatusNotFound, "Token not found"},
	{core.ErrIssuerNotFound, http.StatusNotFound, "User not found"},
	{core.ErrInvalidAddress, http.StatusBadRequest, "Invalid address"},
}

// statusFor maps a service error to its public status and message
func statusFor(err error) (int, string, bool) {
	for _, known := range knownErrors {
		if errors.Is(err, known.err) {
			return known.status, known.message, true
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), false
}

type errorWriter struct {
	log *zap.Logger
	dev bool
}

func (w errorWriter) abort(c *gin.Context, err error) {
	status, message, known := statusFor(err)
	body := ErrorBody{Message: message, Status: status}

	if !known {
		w.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_id", c.GetString(ctxIssuerID)),
			zap.Error(err),
		)
		if w.dev {
			body.Details = err.Error()
		}
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

func (w errorWriter) badRequest(c *gin.Context, err error) {
	body := ErrorBody{Message: "Invalid request", Status: http.StatusBadRequest}
	if w.dev {
		body.Details = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: body})
}
