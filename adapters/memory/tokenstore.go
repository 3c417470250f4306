package memory

import (
	"context"
	"sync"
	"time"

	"github.com/glowdesk/aimeter/ports"
)

// TokenStore is an in-memory implementation of ports.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]ports.Token // keyed by prefix
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[string]ports.Token)}
}

// Create stores a new token.
func (s *TokenStore) Create(ctx context.Context, t ports.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[t.Prefix] = t
	return nil
}

// GetByPrefix retrieves a token by its public prefix.
func (s *TokenStore) GetByPrefix(ctx context.Context, prefix string) (ports.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[prefix]
	if !ok {
		return ports.Token{}, ports.ErrNotFound
	}
	return t, nil
}

// Revoke marks a token as revoked.
func (s *TokenStore) Revoke(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for prefix, t := range s.tokens {
		if t.ID == id && t.RevokedAt == nil {
			stamp := at.UTC()
			t.RevokedAt = &stamp
			s.tokens[prefix] = t
			return nil
		}
	}
	return ports.ErrNotFound
}

// List returns all tokens.
func (s *TokenStore) List(ctx context.Context) ([]ports.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]ports.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// Ensure interface compliance.
var _ ports.TokenStore = (*TokenStore)(nil)
