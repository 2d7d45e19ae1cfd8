package tokenizer

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey    *ecdsa.PrivateKey
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ ports.Tokenizer = (*JWTTokenizer)(nil)

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, accessTTL, refreshTTL time.Duration) *JWTTokenizer {
	return &JWTTokenizer{
		signKey:    signKey,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock overrides the time source used for issuing and validation
func (j *JWTTokenizer) WithClock(now func() time.Time) *JWTTokenizer {
	j.now = now
	return j
}

func audience(tokenType core.TokenType) (string, error) {
	switch tokenType {
	case core.TokenTypeAccess:
		return AudienceAccess, nil
	case core.TokenTypeRefresh:
		return AudienceRefresh, nil
	}
	return "", fmt.Errorf("%w: unknown token type %q", core.ErrInvalidToken, tokenType)
}

func (j *JWTTokenizer) ttl(tokenType core.TokenType) time.Duration {
	if tokenType == core.TokenTypeRefresh {
		return j.refreshTTL
	}
	return j.accessTTL
}

// Issue signs a new token for the issuer
func (j *JWTTokenizer) Issue(issuerID string, tokenType core.TokenType) (string, time.Time, error) {
	aud, err := audience(tokenType)
	if err != nil {
		return "", time.Time{}, err
	}

	now := j.now()
	expiresAt := now.Add(j.ttl(tokenType))
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   issuerID,
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Audience:  jwt.ClaimStrings{aud},
		},
		Type: string(tokenType),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)

	signedToken, err := token.SignedString(j.signKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// Parse validates a token and returns its claims
func (j *JWTTokenizer) Parse(tokenStr string, tokenType core.TokenType) (*core.TokenClaims, error) {
	aud, err := audience(tokenType)
	if err != nil {
		return nil, err
	}

	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	},
		jwt.WithAudience(aud),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || claims.Type != string(tokenType) {
		return nil, fmt.Errorf("%w: invalid claims type", core.ErrInvalidToken)
	}

	out := &core.TokenClaims{
		ID:        claims.ID,
		IssuerID:  claims.Subject,
		Type:      tokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
