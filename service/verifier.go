package service

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// aptosEd25519Scheme is appended to the public key when deriving an
// Aptos authentication key
const aptosEd25519Scheme = 0x00

// SignatureVerifier checks wallet signatures over challenge messages.
// It never fails loudly: every fault is logged and reported as an invalid signature.
type SignatureVerifier struct {
	log         *zap.Logger
	bindAddress bool
	now         func() time.Time
}

// VerifierOption configures a SignatureVerifier
type VerifierOption func(*SignatureVerifier)

// WithAddressBinding controls whether an Ed25519 public key must derive the
// claimed address. Accounts with rotated keys need this disabled.
func WithAddressBinding(enabled bool) VerifierOption {
	return func(v *SignatureVerifier) {
		v.bindAddress = enabled
	}
}

// WithVerifierClock overrides the time source used for assertion expiry
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *SignatureVerifier) {
		v.now = now
	}
}

// NewSignatureVerifier returns a verifier with address binding enabled
func NewSignatureVerifier(log *zap.Logger, opts ...VerifierOption) *SignatureVerifier {
	v := &SignatureVerifier{
		log:         log.Named("verifier"),
		bindAddress: true,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyPayload decodes the wire signature and verifies it
func (v *SignatureVerifier) VerifyPayload(address string, raw json.RawMessage, message, publicKey string) bool {
	sig, err := core.ParseSignature(raw)
	if err != nil {
		v.log.Debug("unsupported signature payload", zap.Error(err))
		return false
	}
	return v.Verify(address, sig, message, publicKey)
}

// Verify reports whether sig proves control of address over message
func (v *SignatureVerifier) Verify(address string, sig core.Signature, message, publicKey string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("signature verification panicked", zap.Any("panic", r))
			ok = false
		}
	}()

	if sig == nil {
		return false
	}
	return sig.Accept(&verification{
		SignatureVerifier: v,
		address:           address,
		message:           message,
		publicKey:         publicKey,
	})
}

type verification struct {
	*SignatureVerifier
	address   string
	message   string
	publicKey string
}

func (c *verification) VisitRaw(sig core.RawSignature) bool {
	ok, err := eth.VerifyPersonalSign(c.address, c.message, sig.Hex)
	if err != nil {
		c.log.Debug("personal sign recovery failed", zap.Error(err))
		return false
	}
	return ok
}

func (c *verification) VisitEd25519(sig core.Ed25519Signature) bool {
	if c.publicKey == "" {
		c.log.Debug("ed25519 signature without public key")
		return false
	}

	pub, err := eth.DecodeHex(c.publicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		c.log.Debug("invalid ed25519 public key", zap.Int("length", len(pub)), zap.Error(err))
		return false
	}
	if len(sig.Data) != ed25519.SignatureSize {
		c.log.Debug("invalid ed25519 signature length", zap.Int("length", len(sig.Data)))
		return false
	}

	parsed, err := core.ParseChallengeMessage(c.message)
	if err != nil {
		c.log.Debug("ed25519 message is not a challenge", zap.Error(err))
		return false
	}

	if c.bindAddress && !aptosAddressMatches(pub, c.address) {
		c.log.Debug("ed25519 public key does not derive address", zap.String("address", c.address))
		return false
	}

	return ed25519.Verify(pub, []byte(aptosSigningMessage(c.message, parsed.Nonce)), sig.Data)
}

// VisitAssertion accepts a well-formed, unexpired RS256 assertion. The
// assertion is not verified back to its identity provider.
func (c *verification) VisitAssertion(sig core.AssertionSignature) bool {
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal([]byte(sig.JWTHeader), &header); err != nil {
		c.log.Debug("invalid assertion header", zap.Error(err))
		return false
	}
	if jwt.GetSigningMethod(header.Alg) != jwt.SigningMethodRS256 {
		c.log.Warn("unsupported assertion algorithm", zap.String("alg", header.Alg))
		return false
	}
	if len(sig.EphemeralPublicKey) == 0 || len(sig.EphemeralSignature) == 0 {
		c.log.Warn("assertion is missing ephemeral key material",
			zap.Bool("has_public_key", len(sig.EphemeralPublicKey) > 0),
			zap.Bool("has_signature", len(sig.EphemeralSignature) > 0),
		)
		return false
	}

	c.log.Debug("assertion accepted without provider verification", zap.Int64("expiry", sig.ExpiryDateSecs))
	return sig.ExpiryDateSecs > c.now().Unix()
}

func aptosSigningMessage(message, nonce string) string {
	return fmt.Sprintf("APTOS\nmessage: %s\nnonce: %s", message, nonce)
}

// aptosAddressMatches compares sha3-256(pubkey || scheme) with the address,
// accepting the short form with leading zeros stripped
func aptosAddressMatches(pub []byte, address string) bool {
	addr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(address), "0x"))
	if addr == "" || len(addr) > 64 {
		return false
	}
	addr = strings.Repeat("0", 64-len(addr)) + addr

	key := sha3.Sum256(append(append([]byte{}, pub...), aptosEd25519Scheme))
	return hex.EncodeToString(key[:]) == addr
}
