package storage

import (
	"context"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// TokenStore provides access to the durable tokens table.
// One upsertable record per mint: create supplies defaults for every
// field, update only touches the fields provided.
type TokenStore interface {
	// Upsert creates the record when absent (defaults plus the staged
	// fields) or applies only the staged fields when present. Idempotent:
	// re-applying the same fields is a no-op. Returns ErrInvalidInput for
	// field names outside the known vocabulary.
	Upsert(ctx context.Context, mint string, fields map[string]string) error

	// Get retrieves a token by mint. Returns ErrNotFound if not exists.
	Get(ctx context.Context, mint string) (*domain.Token, error)

	// ListByState retrieves up to limit tokens in the given state,
	// ordered by hot score descending.
	ListByState(ctx context.Context, state domain.TokenState, limit int) ([]*domain.Token, error)

	// ListForScoring retrieves up to limit non-dead tokens, ordered by
	// last update descending.
	ListForScoring(ctx context.Context, limit int) ([]*domain.Token, error)

	// UpdateState transitions a token's lifecycle state, stamping
	// previous_state, state_changed_at and last_updated_at.
	UpdateState(ctx context.Context, mint string, newState, oldState domain.TokenState, atMs int64) error

	// DeleteDeadBefore removes dead tokens last updated before cutoffMs.
	// Returns the number of rows removed.
	DeleteDeadBefore(ctx context.Context, cutoffMs int64) (int64, error)

	// CountByState returns the number of tokens per lifecycle state.
	CountByState(ctx context.Context) (map[domain.TokenState]int64, error)
}
