package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// LoginRequest is a signed challenge submitted by a wallet
type LoginRequest struct {
	Address   string
	Signature json.RawMessage
	Message   string
	PublicKey string
	IP        string
	UserAgent string
}

// LoginResponse is a fresh session and the public view of its issuer
type LoginResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         core.PublicIssuer `json:"user"`
}

// AuthService handles authentication business logic
type AuthService struct {
	challenges *ChallengeManager
	verifier   *SignatureVerifier
	resolver   *IssuerResolver
	tokens     *TokenManager
	issuers    ports.IssuerRepository
	audit      *Auditor
	log        *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges *ChallengeManager,
	verifier *SignatureVerifier,
	resolver *IssuerResolver,
	tokens *TokenManager,
	issuers ports.IssuerRepository,
	audit *Auditor,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		challenges: challenges,
		verifier:   verifier,
		resolver:   resolver,
		tokens:     tokens,
		issuers:    issuers,
		audit:      audit,
		log:        log.Named("auth"),
		now:        time.Now,
	}
}

// GenerateNonce creates a new login challenge for the address
func (s *AuthService) GenerateNonce(ctx context.Context, address string) (*core.Challenge, error) {
	return s.challenges.Issue(ctx, address)
}

// Login verifies a signed challenge and starts a new session. Every session
// the issuer had before is revoked.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	msg, err := core.ParseChallengeMessage(req.Message)
	if err != nil {
		return nil, err
	}

	if err := s.challenges.Consume(ctx, req.Address, msg.Nonce, msg.Timestamp); err != nil {
		return nil, err
	}

	if msg.Domain != s.challenges.Domain() {
		return nil, core.ErrInvalidDomain
	}

	if !s.verifier.VerifyPayload(req.Address, req.Signature, req.Message, req.PublicKey) {
		return nil, core.ErrInvalidSignature
	}

	resolved, err := s.resolver.Resolve(ctx, req.Address)
	if err != nil {
		return nil, err
	}
	issuer := resolved.Issuer

	if _, err := s.tokens.RevokeAllActive(ctx, issuer.ID); err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssuePair(ctx, issuer.ID)
	if err != nil {
		return nil, err
	}

	login := core.LoginInfo{At: s.now(), IP: req.IP, UserAgent: req.UserAgent}
	if err := s.issuers.UpdateLastLogin(ctx, issuer.ID, login); err != nil {
		s.log.Warn("failed to record login", zap.String("issuer_id", issuer.ID), zap.Error(err))
	} else {
		issuer.LastLogin = login
	}

	s.audit.Emit(ctx, core.AuthEvent{
		UserID: issuer.ID,
		Event:  core.EventLogin,
		Metadata: map[string]any{
			"ip":        req.IP,
			"userAgent": req.UserAgent,
		},
	})

	return &LoginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         issuer.Public(resolved.Score),
	}, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*core.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken)
}

// Logout revokes a refresh token. Tokens that are no longer Active are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	record, err := s.tokens.RevokeByToken(ctx, refreshToken, core.TokenTypeRefresh)
	if errors.Is(err, core.ErrTokenNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	s.audit.Emit(ctx, core.AuthEvent{
		UserID:   record.IssuerID,
		Event:    core.EventLogout,
		Metadata: map[string]any{"tokenId": record.ID},
	})
	return nil
}

// Authenticate validates an access token and returns its claims
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*core.TokenClaims, error) {
	return s.tokens.ValidateAccess(ctx, accessToken)
}

// Me returns the public view of an issuer
func (s *AuthService) Me(ctx context.Context, issuerID string) (*core.PublicIssuer, error) {
	resolved, err := s.resolver.Lookup(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	user := resolved.Issuer.Public(resolved.Score)
	return &user, nil
}
