package core

import (
	"fmt"
	"time"
)

// TokenType distinguishes access and refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "AccessToken"
	TokenTypeRefresh TokenType = "RefreshToken"
)

// TokenStatus is the lifecycle state of a TokenRecord
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "Active"
	TokenStatusRevoked TokenStatus = "Revoked"
	TokenStatusRotated TokenStatus = "Rotated"
)

// Terminal reports whether no transition leaves this status
func (s TokenStatus) Terminal() bool {
	return s == TokenStatusRevoked || s == TokenStatusRotated
}

// TokenRecord is the persisted state of an issued token.
// Status only moves Active -> Revoked or Active -> Rotated.
type TokenRecord struct {
	ID             string
	Token          string
	Type           TokenType
	IssuerID       string
	Status         TokenStatus
	CreatedAt      time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time
	RotatedToToken string
	UpdatedAt      time.Time
}

// Transition computes the next state of an Active record.
// Repositories apply it atomically, conditional on the record still being Active.
type Transition func(TokenRecord) (TokenRecord, error)

// Revoke moves an Active record to Revoked
func (t TokenRecord) Revoke(at time.Time) (TokenRecord, error) {
	if t.Status != TokenStatusActive {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TokenStatusRevoked)
	}
	t.Status = TokenStatusRevoked
	t.RevokedAt = &at
	t.UpdatedAt = at
	return t, nil
}

// Rotate moves an Active record to Rotated, pointing at its replacement
func (t TokenRecord) Rotate(to string, at time.Time) (TokenRecord, error) {
	if t.Status != TokenStatusActive {
		return t, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TokenStatusRotated)
	}
	if to == "" {
		return t, fmt.Errorf("%w: rotation target is empty", ErrInvalidTransition)
	}
	t.Status = TokenStatusRotated
	t.RotatedToToken = to
	t.UpdatedAt = at
	return t, nil
}

// RevokeAt returns a Transition that revokes at the given time
func RevokeAt(at time.Time) Transition {
	return func(t TokenRecord) (TokenRecord, error) {
		return t.Revoke(at)
	}
}

// RotateTo returns a Transition that rotates to the given token
func RotateTo(to string, at time.Time) Transition {
	return func(t TokenRecord) (TokenRecord, error) {
		return t.Rotate(to, at)
	}
}

// TokenClaims is what the tokenizer extracts from a signed token
type TokenClaims struct {
	ID        string
	IssuerID  string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}
