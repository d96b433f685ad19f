// Package memory provides in-memory TokenStore for tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*domain.Token // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]*domain.Token),
	}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert creates the record with defaults when absent, otherwise applies
// only the provided fields.
func (s *TokenStore) Upsert(_ context.Context, mint string, fields map[string]string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tok, exists := s.tokens[mint]
	if !exists {
		tok = &domain.Token{Mint: mint, State: domain.StateLaunching}
	}

	// Apply to a copy first so a bad field leaves the stored row untouched.
	updated := *tok
	if err := storage.ApplyFields(&updated, fields); err != nil {
		return err
	}

	s.tokens[mint] = &updated
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(_ context.Context, mint string) (*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tok, exists := s.tokens[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tokCopy := *tok
	return &tokCopy, nil
}

// ListByState retrieves up to limit tokens in a state, hot score descending.
func (s *TokenStore) ListByState(_ context.Context, state domain.TokenState, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, tok := range s.tokens {
		if tok.State == state {
			tokCopy := *tok
			result = append(result, &tokCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].HotScore != result[j].HotScore {
			return result[i].HotScore > result[j].HotScore
		}
		return result[i].LastUpdatedAt > result[j].LastUpdatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListForScoring retrieves up to limit non-dead tokens, most recently
// updated first.
func (s *TokenStore) ListForScoring(_ context.Context, limit int) ([]*domain.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Token
	for _, tok := range s.tokens {
		if tok.State != domain.StateDead {
			tokCopy := *tok
			result = append(result, &tokCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastUpdatedAt > result[j].LastUpdatedAt
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateState transitions a token's state, stamping the audit fields.
func (s *TokenStore) UpdateState(_ context.Context, mint string, newState, oldState domain.TokenState, atMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, exists := s.tokens[mint]
	if !exists {
		return storage.ErrNotFound
	}

	tok.State = newState
	tok.PreviousState = oldState
	tok.StateChangedAt = atMs
	tok.LastUpdatedAt = atMs
	return nil
}

// DeleteDeadBefore removes dead tokens last updated before cutoffMs.
func (s *TokenStore) DeleteDeadBefore(_ context.Context, cutoffMs int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for mint, tok := range s.tokens {
		if tok.State == domain.StateDead && tok.LastUpdatedAt < cutoffMs {
			delete(s.tokens, mint)
			removed++
		}
	}
	return removed, nil
}

// CountByState returns the number of tokens per lifecycle state.
func (s *TokenStore) CountByState(_ context.Context) (map[domain.TokenState]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.TokenState]int64)
	for _, tok := range s.tokens {
		counts[tok.State]++
	}
	return counts, nil
}
