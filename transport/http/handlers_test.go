package http

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/adapters/cache"
	"github.com/layer-3/walletauth/adapters/events"
	"github.com/layer-3/walletauth/adapters/store"
	"github.com/layer-3/walletauth/adapters/tokenizer"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	log := zap.NewNop()
	memory := store.NewMemoryStore()
	audit := service.NewAuditor(events.NewLogPublisher(log), log)
	auth := service.NewAuthService(
		service.NewChallengeManager(cache.NewMemoryCache(), "app.example.com", "WalletAuth", time.Minute*5),
		service.NewSignatureVerifier(log),
		service.NewIssuerResolver(memory),
		service.NewTokenManager(tokenizer.NewJWTTokenizer(key, "WalletAuth", time.Minute, time.Hour), memory, audit, log),
		memory,
		audit,
		log,
	)
	return SetupRouter(auth, log, false)
}

func do(t *testing.T, router *gin.Engine, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

type loginResult struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         core.PublicIssuer `json:"user"`
}

func login(t *testing.T, router *gin.Engine) (string, loginResult) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	w := do(t, router, http.MethodPost, "/auth/nonce", gin.H{"address": address})
	require.Equal(t, http.StatusOK, w.Code)
	challenge := decode[core.Challenge](t, w)

	sig, err := crypto.Sign(accounts.TextHash([]byte(challenge.Message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27

	w = do(t, router, http.MethodPost, "/auth/login", gin.H{
		"address":   address,
		"signature": hexutil.Encode(sig),
		"message":   challenge.Message,
	}, "User-Agent", "wallet-test")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return address, decode[loginResult](t, w)
}

func TestHealth(t *testing.T) {
	w := do(t, newRouter(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNonce_BadRequest(t *testing.T) {
	w := do(t, newRouter(t), http.MethodPost, "/auth/nonce", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, http.StatusBadRequest, resp.Error.Status)
	assert.Empty(t, resp.Error.Details)
}

func TestLoginFlow(t *testing.T) {
	router := newRouter(t)
	address, session := login(t, router)

	assert.NotEmpty(t, session.AccessToken)
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, core.NormalizeAddress(address), session.User.Address)
	assert.Zero(t, session.User.Score)

	w := do(t, router, http.MethodGet, "/api/me", nil, "Authorization", "Bearer "+session.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[core.PublicIssuer](t, w)
	assert.Equal(t, session.User.ID, me.ID)

	w = do(t, router, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": session.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decode[core.TokenPair](t, w)
	assert.NotEqual(t, session.RefreshToken, pair.RefreshToken)

	w = do(t, router, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/auth/logout", gin.H{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logged out"}`, w.Body.String())

	w = do(t, router, http.MethodPost, "/auth/logout", gin.H{"refreshToken": pair.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_MalformedMessageIsGeneric(t *testing.T) {
	w := do(t, newRouter(t), http.MethodPost, "/auth/login", gin.H{
		"address":   "0x1",
		"signature": "0x00",
		"message":   "{not json",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, msgUnauthorized, decode[ErrorResponse](t, w).Error.Message)
}

func TestLogin_UnknownNonce(t *testing.T) {
	w := do(t, newRouter(t), http.MethodPost, "/auth/login", gin.H{
		"address":   "0x1",
		"signature": "0x00",
		"message":   `{"nonce":"0x01","address":"0x1","timestamp":0,"domain":"app.example.com"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Nonce not found", decode[ErrorResponse](t, w).Error.Message)
}

func TestMe_RequiresBearer(t *testing.T) {
	router := newRouter(t)

	w := do(t, router, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/me", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMe_OtherSessionsUnaffected(t *testing.T) {
	router := newRouter(t)
	_, first := login(t, router)

	// a second login by a different wallet leaves the first session alone
	login(t, router)
	w := do(t, router, http.MethodGet, "/api/me", nil, "Authorization", "Bearer "+first.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorWriter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		dev     bool
		err     error
		status  int
		details string
	}{
		{"known", false, core.ErrTokenNotFound, http.StatusNotFound, ""},
		{"wrapped", false, errors.Join(errors.New("ctx"), core.ErrInvalidSignature), http.StatusUnauthorized, ""},
		{"internal", false, errors.New("mongo: connection refused"), http.StatusInternalServerError, ""},
		{"internal dev", true, errors.New("mongo: connection refused"), http.StatusInternalServerError, "mongo: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			errorWriter{log: zap.NewNop(), dev: tt.dev}.abort(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.Equal(t, tt.status, resp.Error.Status)
			assert.Equal(t, tt.details, resp.Error.Details)
		})
	}
}
