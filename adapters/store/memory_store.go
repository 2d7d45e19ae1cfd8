package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
)

// MemoryStore is an in-memory implementation of the issuer and token repositories.
// Every operation holds a single lock, which makes conditional updates atomic.
type MemoryStore struct {
	issuers  map[string]core.Issuer
	byWallet map[string]string
	scores   map[string]core.Score
	tokens   map[string]core.TokenRecord // keyed by record ID
	mu       sync.RWMutex
}

var (
	_ ports.IssuerRepository = (*MemoryStore)(nil)
	_ ports.TokenRepository  = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issuers:  make(map[string]core.Issuer),
		byWallet: make(map[string]string),
		scores:   make(map[string]core.Score),
		tokens:   make(map[string]core.TokenRecord),
	}
}

func (s *MemoryStore) FindIssuerByID(ctx context.Context, id string) (*core.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issuer, ok := s.issuers[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneIssuer(issuer), nil
}

func (s *MemoryStore) FindIssuerByWallet(ctx context.Context, primaryWallet string) (*core.Issuer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byWallet[primaryWallet]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return cloneIssuer(s.issuers[id]), nil
}

func (s *MemoryStore) CreateIssuerWithScore(ctx context.Context, issuer *core.Issuer, score *core.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byWallet[issuer.PrimaryWallet]; taken {
		return ports.ErrDuplicate
	}
	if _, taken := s.issuers[issuer.ID]; taken {
		return ports.ErrDuplicate
	}

	s.issuers[issuer.ID] = *cloneIssuer(*issuer)
	s.byWallet[issuer.PrimaryWallet] = issuer.ID
	s.scores[score.IssuerID] = *score
	return nil
}

func (s *MemoryStore) UpdateLastLogin(ctx context.Context, issuerID string, login core.LoginInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuer, ok := s.issuers[issuerID]
	if !ok {
		return ports.ErrNotFound
	}
	issuer.LastLogin = login
	issuer.UpdatedAt = login.At
	s.issuers[issuerID] = issuer
	return nil
}

func (s *MemoryStore) FindScore(ctx context.Context, issuerID string) (*core.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.scores[issuerID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &score, nil
}

func (s *MemoryStore) InsertTokens(ctx context.Context, records ...*core.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if _, exists := s.tokens[r.ID]; exists {
			return ports.ErrDuplicate
		}
	}
	for _, r := range records {
		s.tokens[r.ID] = *r
	}
	return nil
}

func (s *MemoryStore) FindActiveToken(ctx context.Context, token string, tokenType core.TokenType) (*core.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.findActive(token, tokenType)
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) TransitionActive(ctx context.Context, token string, tokenType core.TokenType, transition core.Transition) (*core.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.findActive(token, tokenType)
	if !ok {
		return nil, ports.ErrNotFound
	}
	next, err := transition(current)
	if err != nil {
		return nil, err
	}
	s.tokens[next.ID] = next
	return &next, nil
}

func (s *MemoryStore) RevokeAllActive(ctx context.Context, issuerID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, r := range s.tokens {
		if r.IssuerID != issuerID || r.Status != core.TokenStatusActive {
			continue
		}
		revoked, err := r.Revoke(at)
		if err != nil {
			return count, err
		}
		s.tokens[id] = revoked
		count++
	}
	return count, nil
}

// findActive must be called with mu held
func (s *MemoryStore) findActive(token string, tokenType core.TokenType) (core.TokenRecord, bool) {
	for _, r := range s.tokens {
		if r.Token == token && r.Type == tokenType && r.Status == core.TokenStatusActive {
			return r, true
		}
	}
	return core.TokenRecord{}, false
}

func cloneIssuer(i core.Issuer) *core.Issuer {
	i.WalletLinks = append([]core.WalletLink{}, i.WalletLinks...)
	i.SocialLinks = append([]core.SocialLink{}, i.SocialLinks...)
	return &i
}
