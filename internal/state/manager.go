package state

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Shillz96/solsim-sub011/internal/cache"
	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/notify"
	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// Manager owns lifecycle state transitions. UpdateState is the only
// sanctioned way to change a token's state.
type Manager struct {
	store     storage.TokenStore
	cache     *cache.Manager
	publisher notify.Publisher
	registry  notify.Registry
	policy    Policy
	logger    *log.Logger
	metrics   *observability.Metrics

	now func() int64
}

// Options contains configuration for creating a Manager.
type Options struct {
	Store     storage.TokenStore
	Cache     *cache.Manager
	Publisher notify.Publisher
	Registry  notify.Registry
	Policy    *Policy
	Logger    *log.Logger
	Metrics   *observability.Metrics

	// Now overrides the clock, for tests.
	Now func() int64
}

// NewManager creates a state manager.
func NewManager(opts Options) *Manager {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}

	return &Manager{
		store:     opts.Store,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		registry:  opts.Registry,
		policy:    policy,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Policy returns the classification thresholds in effect.
func (m *Manager) Policy() Policy {
	return m.policy
}

// ClassifyToken decides the lifecycle state for a token right now.
func (m *Manager) ClassifyToken(tok *domain.Token) domain.TokenState {
	return Classify(tok.Snapshot(), m.policy, m.now())
}

// UpdateState persists a state transition, stamps the audit fields and
// invalidates the cached row. Watcher notification is best-effort and
// never blocks or fails the transition.
func (m *Manager) UpdateState(ctx context.Context, mint string, newState, oldState domain.TokenState) error {
	if newState == oldState {
		return nil
	}
	if !newState.Valid() {
		return fmt.Errorf("%w: state %q", storage.ErrInvalidInput, newState)
	}

	if err := m.store.UpdateState(ctx, mint, newState, oldState, m.now()); err != nil {
		return fmt.Errorf("update state %s -> %s for %s: %w", oldState, newState, mint, err)
	}

	if m.metrics != nil {
		m.metrics.StateTransitions.WithLabelValues(string(newState)).Inc()
	}

	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, mint); err != nil {
			m.logger.Printf("invalidate cache for %s: %v", mint, err)
		}
	}

	m.notifyWatchers(ctx, mint, oldState, newState)
	return nil
}

// notifyWatchers emits one notification per user watching the mint when
// the transition is one users subscribe to. Failures are logged and
// swallowed.
func (m *Manager) notifyWatchers(ctx context.Context, mint string, oldState, newState domain.TokenState) {
	if m.publisher == nil || m.registry == nil {
		return
	}

	kind := notificationKind(oldState, newState)
	if kind == "" {
		return
	}

	users, err := m.registry.Watchers(ctx, mint)
	if err != nil {
		m.logger.Printf("look up watchers for %s: %v", mint, err)
		return
	}

	at := m.now()
	for _, user := range users {
		ev := notify.Event{
			UserID:   user,
			Mint:     mint,
			Kind:     kind,
			OldState: oldState,
			NewState: newState,
			At:       at,
		}
		if err := m.publisher.Publish(ctx, ev); err != nil {
			m.logger.Printf("notify %s about %s: %v", user, mint, err)
		}
	}
}

// notificationKind maps a transition to the event kind users can watch.
// Only graduation-related transitions produce notifications.
func notificationKind(oldState, newState domain.TokenState) string {
	switch {
	case newState == domain.StateBonded:
		return "graduation"
	case newState == domain.StateAboutToBond && oldState != domain.StateBonded:
		return "about_to_bond"
	}
	return ""
}
