package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/walletauth/adapters/cache"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

const (
	testDomain  = "app.example.com"
	testAppName = "WalletAuth"
)

type recorder struct {
	mu     sync.Mutex
	events []core.AuthEvent
}

func (r *recorder) Publish(_ context.Context, event core.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) named(name string) []core.AuthEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []core.AuthEvent
	for _, e := range r.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, core.AuthEvent) error {
	return errors.New("sink unavailable")
}

// trackingStore mirrors every token record written through it, so tests can
// inspect records that are no longer Active. Hooks run around TransitionActive.
type trackingStore struct {
	*store.MemoryStore

	mu               sync.Mutex
	records          map[string]core.TokenRecord // keyed by record ID
	created          int
	beforeTransition func(token string)
	afterTransition  func(token string)
}

func newTrackingStore() *trackingStore {
	return &trackingStore{
		MemoryStore: store.NewMemoryStore(),
		records:     make(map[string]core.TokenRecord),
	}
}

func (s *trackingStore) CreateIssuerWithScore(ctx context.Context, issuer *core.Issuer, score *core.Score) error {
	if err := s.MemoryStore.CreateIssuerWithScore(ctx, issuer, score); err != nil {
		return err
	}
	s.mu.Lock()
	s.created++
	s.mu.Unlock()
	return nil
}

func (s *trackingStore) InsertTokens(ctx context.Context, records ...*core.TokenRecord) error {
	if err := s.MemoryStore.InsertTokens(ctx, records...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = *r
	}
	return nil
}

func (s *trackingStore) TransitionActive(ctx context.Context, token string, tokenType core.TokenType, transition core.Transition) (*core.TokenRecord, error) {
	if s.beforeTransition != nil {
		s.beforeTransition(token)
	}
	next, err := s.MemoryStore.TransitionActive(ctx, token, tokenType, transition)
	if err == nil {
		s.mu.Lock()
		s.records[next.ID] = *next
		s.mu.Unlock()
	}
	if s.afterTransition != nil {
		s.afterTransition(token)
	}
	return next, err
}

func (s *trackingStore) RevokeAllActive(ctx context.Context, issuerID string, at time.Time) (int64, error) {
	count, err := s.MemoryStore.RevokeAllActive(ctx, issuerID, at)
	if err != nil {
		return count, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.IssuerID != issuerID || r.Status != core.TokenStatusActive {
			continue
		}
		if _, err := s.MemoryStore.FindActiveToken(ctx, r.Token, r.Type); err == nil {
			continue
		}
		if revoked, err := r.Revoke(at); err == nil {
			s.records[id] = revoked
		}
	}
	return count, nil
}

// tokens returns the mirrored records of the issuer
func (s *trackingStore) tokens(issuerID string) []core.TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.TokenRecord
	for _, r := range s.records {
		if r.IssuerID == issuerID {
			out = append(out, r)
		}
	}
	return out
}

// active returns the records of the issuer the store still reports as Active
func (s *trackingStore) active(issuerID string) []core.TokenRecord {
	var out []core.TokenRecord
	for _, r := range s.tokens(issuerID) {
		live, err := s.MemoryStore.FindActiveToken(context.Background(), r.Token, r.Type)
		if err == nil && live.ID == r.ID {
			out = append(out, *live)
		}
	}
	return out
}

func (s *trackingStore) createdIssuers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

type fixture struct {
	cache      *cache.MemoryCache
	store      *trackingStore
	events     *recorder
	challenges *ChallengeManager
	verifier   *SignatureVerifier
	resolver   *IssuerResolver
	tokens     *TokenManager
	auth       *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	log := zap.NewNop()
	f := &fixture{
		cache:  cache.NewMemoryCache(),
		store:  newTrackingStore(),
		events: &recorder{},
	}
	audit := NewAuditor(f.events, log)
	f.challenges = NewChallengeManager(f.cache, testDomain, testAppName, DefaultNonceTTL)
	f.verifier = NewSignatureVerifier(log)
	f.resolver = NewIssuerResolver(f.store)
	f.tokens = NewTokenManager(tokenizer.NewJWTTokenizer(key, testAppName, 15*time.Minute, 7*24*time.Hour), f.store, audit, log)
	f.auth = NewAuthService(f.challenges, f.verifier, f.resolver, f.tokens, f.store, audit, log)
	return f
}

func (f *fixture) activeTokens(issuerID string) []core.TokenRecord {
	return f.store.active(issuerID)
}

type evmWallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newEVMWallet(t *testing.T) *evmWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &evmWallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

// sign produces a personal_sign signature with V in {27, 28}
func (w *evmWallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (w *evmWallet) signPayload(t *testing.T, message string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(w.sign(t, message))
	require.NoError(t, err)
	return raw
}

type aptosWallet struct {
	pub     ed25519.PublicKey
	priv    ed25519.PrivateKey
	address string
}

func newAptosWallet(t *testing.T) *aptosWallet {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	authKey := sha3.Sum256(append(append([]byte{}, pub...), 0x00))
	return &aptosWallet{pub: pub, priv: priv, address: "0x" + hex.EncodeToString(authKey[:])}
}

func (w *aptosWallet) publicKey() string {
	return hexutil.Encode(w.pub)
}

// signPayload signs the wallet framing of message and encodes it the way
// the wallet adapter does, as {"data": {"data": [..]}}
func (w *aptosWallet) signPayload(t *testing.T, message string) json.RawMessage {
	t.Helper()
	parsed, err := core.ParseChallengeMessage(message)
	require.NoError(t, err)
	sig := ed25519.Sign(w.priv, []byte(aptosSigningMessage(message, parsed.Nonce)))
	return bytesPayload(t, sig)
}

func bytesPayload(t *testing.T, b []byte) json.RawMessage {
	t.Helper()
	values := make([]int, len(b))
	for i, v := range b {
		values[i] = int(v)
	}
	raw, err := json.Marshal(map[string]any{"data": map[string]any{"data": values}})
	require.NoError(t, err)
	return raw
}

func assertionPayload(t *testing.T, alg string, key, sig []byte, expiry int64) json.RawMessage {
	t.Helper()
	header, err := json.Marshal(map[string]string{"alg": alg, "typ": "JWT"})
	require.NoError(t, err)

	indexed := func(b []byte) map[string]int {
		out := make(map[string]int, len(b))
		for i, v := range b {
			out[strconv.Itoa(i)] = int(v)
		}
		return out
	}

	raw, err := json.Marshal(map[string]any{
		"variant": core.AssertionVariant,
		"signature": map[string]any{
			"jwtHeader": string(header),
			"ephemeralPublicKey": map[string]any{
				"publicKey": map[string]any{"key": map[string]any{"data": indexed(key)}},
			},
			"ephemeralSignature": map[string]any{
				"signature": map[string]any{"data": map[string]any{"data": indexed(sig)}},
			},
			"expiryDateSecs": expiry,
		},
	})
	require.NoError(t, err)
	return raw
}

// rewrite re-encodes a challenge message after edit
func rewrite(t *testing.T, message string, edit func(*core.ChallengeMessage)) string {
	t.Helper()
	msg, err := core.ParseChallengeMessage(message)
	require.NoError(t, err)
	edit(msg)
	out, err := msg.Encode()
	require.NoError(t, err)
	return out
}
