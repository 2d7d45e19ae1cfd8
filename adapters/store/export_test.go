package store

import "github.com/layer-3/walletauth/core"

// Tokens returns every record of the issuer
func (s *MemoryStore) Tokens(issuerID string) []core.TokenRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.TokenRecord
	for _, r := range s.tokens {
		if r.IssuerID == issuerID {
			out = append(out, r)
		}
	}
	return out
}

// IssuerCount returns the number of stored issuers
func (s *MemoryStore) IssuerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.issuers)
}

// ScoreCount returns the number of stored scores
func (s *MemoryStore) ScoreCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scores)
}
