// Package eth wraps the go-ethereum primitives used for wallet login.
package eth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an R || S || V signature
const SignatureLength = crypto.SignatureLength

var ErrInvalidSignatureLength = errors.New("signature must be 65 bytes")

// RandomHex returns n random bytes as 0x-prefixed hex
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hexutil.Encode(buf), nil
}

// DecodeHex decodes hex with or without a 0x/0X prefix
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// RecoverPersonalSign returns the address that produced an EIP-191
// personal_sign signature over message
func RecoverPersonalSign(message string, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return common.Address{}, ErrInvalidSignatureLength
	}

	// wallets emit V as 27/28, SigToPub expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSign reports whether signature over message was produced by address
func VerifyPersonalSign(address, message, signature string) (bool, error) {
	recovered, err := RecoverPersonalSign(message, signature)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(recovered.Hex(), address), nil
}
