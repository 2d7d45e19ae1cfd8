package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	errors      errorWriter
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, errs errorWriter) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		errors:      errs,
	}
}

type nonceRequest struct {
	Address string `json:"address" binding:"required"`
}

type loginRequest struct {
	Address   string          `json:"address" binding:"required"`
	Signature json.RawMessage `json:"signature" binding:"required"`
	Message   string          `json:"message" binding:"required"`
	PublicKey string          `json:"publicKey"`
}

type tokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Nonce issues a login challenge
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req nonceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, err)
		return
	}

	challenge, err := h.authService.GenerateNonce(c.Request.Context(), req.Address)
	if err != nil {
		h.errors.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, challenge)
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, err)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &service.LoginRequest{
		Address:   req.Address,
		Signature: req.Signature,
		Message:   req.Message,
		PublicKey: req.PublicKey,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		h.errors.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, err)
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.errors.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.badRequest(c, err)
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.errors.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), c.GetString(ctxIssuerID))
	if err != nil {
		h.errors.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Health reports that the process is serving
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
