package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims carried by access and refresh tokens
type SessionClaims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}
