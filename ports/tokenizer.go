package ports

import (
	"time"

	"github.com/layer-3/walletauth/core"
)

// Tokenizer signs session tokens and parses them back
type Tokenizer interface {
	// Issue signs a new token of the given type for the issuer
	Issue(issuerID string, tokenType core.TokenType) (token string, expiresAt time.Time, err error)

	// Parse validates signature, audience and expiry of a token
	Parse(token string, tokenType core.TokenType) (*core.TokenClaims, error)
}
