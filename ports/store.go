package ports

import (
	"context"
	"time"

	"github.com/layer-3/walletauth/core"
)

// IssuerRepository persists identity and score records
type IssuerRepository interface {
	FindIssuerByID(ctx context.Context, id string) (*core.Issuer, error)
	FindIssuerByWallet(ctx context.Context, primaryWallet string) (*core.Issuer, error)

	// CreateIssuerWithScore inserts both records or neither.
	// Returns ErrDuplicate if the primary wallet is already taken.
	CreateIssuerWithScore(ctx context.Context, issuer *core.Issuer, score *core.Score) error

	UpdateLastLogin(ctx context.Context, issuerID string, login core.LoginInfo) error
	FindScore(ctx context.Context, issuerID string) (*core.Score, error)
}

// TokenRepository persists token records
type TokenRepository interface {
	InsertTokens(ctx context.Context, records ...*core.TokenRecord) error
	FindActiveToken(ctx context.Context, token string, tokenType core.TokenType) (*core.TokenRecord, error)

	// TransitionActive applies transition to the Active record matching token and
	// type, conditional on it still being Active when written. Returns ErrNotFound
	// when no Active record matches, including when a concurrent caller won.
	TransitionActive(ctx context.Context, token string, tokenType core.TokenType, transition core.Transition) (*core.TokenRecord, error)

	// RevokeAllActive moves every Active record of the issuer to Revoked
	RevokeAllActive(ctx context.Context, issuerID string, at time.Time) (int64, error)
}
