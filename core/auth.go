package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// NonceRecord is the pending challenge stored for an address
type NonceRecord struct {
	Nonce     string `json:"nonce"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// IssuedAt returns the record timestamp as a time
func (r NonceRecord) IssuedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Challenge is what the client receives and has to sign
type Challenge struct {
	Nonce   string `json:"nonce"`
	Message string `json:"message"`
}

// ChallengeMessage is the structured payload signed by 0x-style wallets.
// Field order is the canonical serialization order.
type ChallengeMessage struct {
	Nonce     string `json:"nonce"`
	Address   string `json:"address"`
	Timestamp int64  `json:"timestamp"`
	Domain    string `json:"domain"`
}

// ParseChallengeMessage decodes a client-submitted message
func ParseChallengeMessage(message string) (*ChallengeMessage, error) {
	var msg ChallengeMessage
	if err := json.Unmarshal([]byte(message), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &msg, nil
}

// Encode serializes the message canonically
func (m ChallengeMessage) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// WelcomeMessage is the human-readable challenge used for non-0x addresses
func WelcomeMessage(appName, nonce, address string) string {
	return fmt.Sprintf("Welcome to %s!\n\n"+
		"Please sign this message to verify your wallet ownership.\n\n"+
		"Nonce: %s\nWallet: %s\n\n"+
		"This signature will not trigger any blockchain transaction or cost any gas fees.",
		appName, nonce, address)
}

// NormalizeAddress returns the canonical storage form of a wallet address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsHexPrefixed reports whether the address uses the 0x format
func IsHexPrefixed(address string) bool {
	return strings.HasPrefix(address, "0x")
}

// TokenPair is an access/refresh pair handed to the client
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
