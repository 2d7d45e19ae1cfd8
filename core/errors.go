package core

import "errors"

var (
	ErrNonceNotFound        = errors.New("nonce not found")
	ErrNonceExpired         = errors.New("nonce expired")
	ErrInvalidDomain        = errors.New("invalid domain")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidRefreshToken  = errors.New("refresh token is used or does not exist")
	ErrTokenNotFound        = errors.New("token not found")
	ErrMalformedMessage     = errors.New("malformed message")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidTransition    = errors.New("invalid token status transition")
	ErrIssuerNotFound       = errors.New("issuer not found")
	ErrInvalidAddress       = errors.New("invalid wallet address")
	ErrUnsupportedSignature = errors.New("unsupported signature")
)
