package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"go.uber.org/zap"
)

// TokenManager owns the lifecycle of access and refresh tokens
type TokenManager struct {
	tokenizer ports.Tokenizer
	repo      ports.TokenRepository
	audit     *Auditor
	log       *zap.Logger
	now       func() time.Time
}

// NewTokenManager returns a TokenManager persisting records in repo
func NewTokenManager(tokenizer ports.Tokenizer, repo ports.TokenRepository, audit *Auditor, log *zap.Logger) *TokenManager {
	return &TokenManager{
		tokenizer: tokenizer,
		repo:      repo,
		audit:     audit,
		log:       log.Named("tokens"),
		now:       time.Now,
	}
}

// WithClock overrides the time source used for record timestamps
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

// IssuePair signs and persists a new Active access/refresh pair
func (m *TokenManager) IssuePair(ctx context.Context, issuerID string) (*core.TokenPair, error) {
	pair, records, err := m.mint(issuerID)
	if err != nil {
		return nil, err
	}
	if err := m.repo.InsertTokens(ctx, records...); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}
	return pair, nil
}

func (m *TokenManager) mint(issuerID string) (*core.TokenPair, []*core.TokenRecord, error) {
	access, err := m.record(issuerID, core.TokenTypeAccess)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := m.record(issuerID, core.TokenTypeRefresh)
	if err != nil {
		return nil, nil, err
	}

	pair := &core.TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}
	return pair, []*core.TokenRecord{access, refresh}, nil
}

func (m *TokenManager) record(issuerID string, tokenType core.TokenType) (*core.TokenRecord, error) {
	token, expiresAt, err := m.tokenizer.Issue(issuerID, tokenType)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", tokenType, err)
	}
	now := m.now()
	return &core.TokenRecord{
		ID:        uuid.New().String(),
		Token:     token,
		Type:      tokenType,
		IssuerID:  issuerID,
		Status:    core.TokenStatusActive,
		CreatedAt: now,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
	}, nil
}

// RevokeAllActive revokes every Active token of the issuer
func (m *TokenManager) RevokeAllActive(ctx context.Context, issuerID string) (int64, error) {
	count, err := m.repo.RevokeAllActive(ctx, issuerID, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke tokens: %w", err)
	}

	m.audit.Emit(ctx, core.AuthEvent{
		UserID:   issuerID,
		Event:    core.EventAllTokensRevoked,
		Metadata: map[string]any{"revokedCount": count},
	})
	return count, nil
}

// Rotate exchanges an Active refresh token for a new pair. The new pair is
// stored before the old token is moved to Rotated, so a concurrent
// RevokeAllActive always sees it. If the old token is no longer Active the
// new pair is revoked again and nothing is returned.
func (m *TokenManager) Rotate(ctx context.Context, oldRefresh string) (*core.TokenPair, error) {
	record, err := m.activeRefresh(ctx, oldRefresh)
	if err != nil {
		return nil, m.rotateFailed(ctx, "", err)
	}

	pair, records, err := m.mint(record.IssuerID)
	if err != nil {
		return nil, m.rotateFailed(ctx, record.IssuerID, err)
	}

	if err := m.repo.InsertTokens(ctx, records...); err != nil {
		return nil, m.rotateFailed(ctx, record.IssuerID, fmt.Errorf("failed to store tokens: %w", err))
	}

	_, err = m.repo.TransitionActive(ctx, oldRefresh, core.TokenTypeRefresh, core.RotateTo(pair.RefreshToken, m.now()))
	if err != nil {
		m.discard(ctx, records)
		if errors.Is(err, ports.ErrNotFound) || errors.Is(err, core.ErrInvalidTransition) {
			return nil, m.rotateFailed(ctx, record.IssuerID, core.ErrInvalidRefreshToken)
		}
		return nil, m.rotateFailed(ctx, record.IssuerID, fmt.Errorf("failed to rotate token: %w", err))
	}

	m.audit.Emit(ctx, core.AuthEvent{
		UserID:   record.IssuerID,
		Event:    core.EventTokenRefresh,
		Metadata: map[string]any{"tokenId": record.ID},
	})
	return pair, nil
}

// discard revokes records stored by a rotation that lost its swap
func (m *TokenManager) discard(ctx context.Context, records []*core.TokenRecord) {
	now := m.now()
	for _, r := range records {
		_, err := m.repo.TransitionActive(ctx, r.Token, r.Type, core.RevokeAt(now))
		if err != nil && !errors.Is(err, ports.ErrNotFound) && !errors.Is(err, core.ErrInvalidTransition) {
			m.log.Error("failed to revoke discarded token", zap.String("token_id", r.ID), zap.Error(err))
		}
	}
}

func (m *TokenManager) activeRefresh(ctx context.Context, token string) (*core.TokenRecord, error) {
	claims, err := m.tokenizer.Parse(token, core.TokenTypeRefresh)
	if err != nil {
		m.log.Debug("refresh token rejected", zap.Error(err))
		return nil, core.ErrInvalidRefreshToken
	}

	record, err := m.repo.FindActiveToken(ctx, token, core.TokenTypeRefresh)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, core.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if record.IssuerID != claims.IssuerID {
		m.log.Warn("refresh token subject mismatch", zap.String("token_id", record.ID))
		return nil, core.ErrInvalidRefreshToken
	}
	return record, nil
}

func (m *TokenManager) rotateFailed(ctx context.Context, issuerID string, err error) error {
	msg := "Invalid refresh token"
	if !errors.Is(err, core.ErrInvalidRefreshToken) {
		msg = "Token rotation failed"
	}
	m.audit.Emit(ctx, core.AuthEvent{
		UserID: issuerID,
		Event:  core.EventTokenRefresh,
		Error:  msg,
	})
	return err
}

// RevokeByToken revokes the Active record matching token and type
func (m *TokenManager) RevokeByToken(ctx context.Context, token string, tokenType core.TokenType) (*core.TokenRecord, error) {
	record, err := m.repo.TransitionActive(ctx, token, tokenType, core.RevokeAt(m.now()))
	if errors.Is(err, ports.ErrNotFound) || errors.Is(err, core.ErrInvalidTransition) {
		return nil, core.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to revoke token: %w", err)
	}
	return record, nil
}

// ValidateAccess checks an access token signature and that its record is still Active
func (m *TokenManager) ValidateAccess(ctx context.Context, accessToken string) (*core.TokenClaims, error) {
	claims, err := m.tokenizer.Parse(accessToken, core.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	record, err := m.repo.FindActiveToken(ctx, accessToken, core.TokenTypeAccess)
	if errors.Is(err, ports.ErrNotFound) {
		return nil, fmt.Errorf("%w: token is no longer active", core.ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	if record.IssuerID != claims.IssuerID {
		return nil, fmt.Errorf("%w: subject mismatch", core.ErrInvalidToken)
	}
	return claims, nil
}
