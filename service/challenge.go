package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/internal/eth"
	"github.com/layer-3/walletauth/ports"
)

const (
	// DefaultNonceTTL bounds both the cache entry lifetime and the accepted timestamp skew
	DefaultNonceTTL = 5 * time.Minute

	nonceBytes     = 32
	nonceKeyPrefix = "nonce:"
)

// ChallengeManager issues and consumes single-use login challenges
type ChallengeManager struct {
	cache   ports.NonceCache
	domain  string
	appName string
	ttl     time.Duration
	now     func() time.Time
}

// NewChallengeManager creates a challenge manager bound to the service domain
func NewChallengeManager(cache ports.NonceCache, domain, appName string, ttl time.Duration) *ChallengeManager {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &ChallengeManager{
		cache:   cache,
		domain:  domain,
		appName: appName,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock overrides the time source
func (m *ChallengeManager) WithClock(now func() time.Time) *ChallengeManager {
	m.now = now
	return m
}

// Domain is the hostname challenges are bound to
func (m *ChallengeManager) Domain() string {
	return m.domain
}

func nonceKey(address string) string {
	return nonceKeyPrefix + core.NormalizeAddress(address)
}

// Issue stores a fresh nonce for the address, replacing any pending one,
// and returns it together with the message the wallet has to sign.
func (m *ChallengeManager) Issue(ctx context.Context, address string) (*core.Challenge, error) {
	if core.NormalizeAddress(address) == "" {
		return nil, core.ErrInvalidAddress
	}

	nonce, err := eth.RandomHex(nonceBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := m.now()
	record, err := json.Marshal(core.NonceRecord{Nonce: nonce, Timestamp: now.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode nonce: %w", err)
	}
	if err := m.cache.Set(ctx, nonceKey(address), string(record), m.ttl); err != nil {
		return nil, fmt.Errorf("failed to store nonce: %w", err)
	}

	message, err := m.message(nonce, address, now)
	if err != nil {
		return nil, err
	}

	return &core.Challenge{Nonce: nonce, Message: message}, nil
}

func (m *ChallengeManager) message(nonce, address string, now time.Time) (string, error) {
	if !core.IsHexPrefixed(address) {
		return core.WelcomeMessage(m.appName, nonce, address), nil
	}
	msg := core.ChallengeMessage{
		Nonce:     nonce,
		Address:   address,
		Timestamp: now.UnixMilli(),
		Domain:    m.domain,
	}
	return msg.Encode()
}

// Consume validates the claimed nonce and timestamp against the pending
// challenge and deletes it on success. Lookup and delete are one atomic step,
// so a nonce is accepted at most once.
func (m *ChallengeManager) Consume(ctx context.Context, address, nonce string, timestamp int64) error {
	now := m.now()

	err := m.cache.Take(ctx, nonceKey(address), func(value string) error {
		var record core.NonceRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			return core.ErrNonceNotFound
		}
		if record.Nonce == "" || record.Nonce != nonce {
			return core.ErrNonceNotFound
		}
		skew := now.Sub(time.UnixMilli(timestamp))
		if skew > m.ttl || skew < -m.ttl {
			return core.ErrNonceExpired
		}
		return nil
	})
	if errors.Is(err, ports.ErrCacheMiss) {
		return core.ErrNonceNotFound
	}
	return err
}
