// Package buffer implements the write-behind staging layer between the
// hot event path and the durable store. Handlers stage field updates
// into a Redis hash; a periodic sync applies them to PostgreSQL in
// chunks. The durable store is allowed to lag by up to one sync
// interval.
package buffer

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// Key namespaces for the staging store.
const (
	stageKeyPrefix = "token:buffer:"
	pendingSetKey  = "token:buffer:pending"
)

// Config configures the buffer manager.
type Config struct {
	// StageTTL bounds how long an orphaned staged hash survives a
	// crashed flush cycle. A safety net, not the primary expiry.
	StageTTL time.Duration
	// ChunkSize is how many mints one flush pass applies at a time.
	ChunkSize int
	// ChunkPause bounds load on the durable store between chunks.
	ChunkPause time.Duration
}

// DefaultConfig returns default buffer configuration.
func DefaultConfig() Config {
	return Config{
		StageTTL:   30 * time.Minute,
		ChunkSize:  100,
		ChunkPause: 50 * time.Millisecond,
	}
}

// Manager stages field updates and flushes them to the durable store.
type Manager struct {
	client  *redis.Client
	store   storage.TokenStore
	config  Config
	logger  *log.Logger
	metrics *observability.Metrics
}

// Options contains configuration for creating a Manager.
type Options struct {
	Client  *redis.Client
	Store   storage.TokenStore
	Config  *Config
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewManager creates a buffer manager.
func NewManager(opts Options) *Manager {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		client:  opts.Client,
		store:   opts.Store,
		config:  cfg,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Buffer stages fields for a mint and marks it pending. Repeated calls
// for the same mint merge at field granularity: the last write per field
// wins, untouched fields keep their staged value.
func (m *Manager) Buffer(ctx context.Context, mint string, fields map[string]string) error {
	if mint == "" || len(fields) == 0 {
		return storage.ErrInvalidInput
	}
	for name := range fields {
		if !storage.KnownField(name) {
			return storage.ErrInvalidInput
		}
	}

	values := make(map[string]any, len(fields))
	for name, value := range fields {
		values[name] = value
	}

	pipe := m.client.Pipeline()
	pipe.HSet(ctx, stageKeyPrefix+mint, values)
	pipe.Expire(ctx, stageKeyPrefix+mint, m.config.StageTTL)
	pipe.SAdd(ctx, pendingSetKey, mint)
	_, err := pipe.Exec(ctx)
	return err
}

// Pending returns the number of mints awaiting flush.
func (m *Manager) Pending(ctx context.Context) (int64, error) {
	return m.client.SCard(ctx, pendingSetKey).Result()
}

// Sync flushes every pending staged entry to the durable store and
// returns the count successfully synced. A mint that fails keeps its
// staged entry and pending membership for the next cycle; re-syncing an
// already-synced entry is a no-op upsert, so overlapping runs are safe.
func (m *Manager) Sync(ctx context.Context) (int, error) {
	mints, err := m.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return 0, err
	}
	if len(mints) == 0 {
		return 0, nil
	}

	synced := 0
	for start := 0; start < len(mints); start += m.config.ChunkSize {
		end := start + m.config.ChunkSize
		if end > len(mints) {
			end = len(mints)
		}

		synced += m.syncChunk(ctx, mints[start:end])

		if end < len(mints) && m.config.ChunkPause > 0 {
			select {
			case <-ctx.Done():
				return synced, ctx.Err()
			case <-time.After(m.config.ChunkPause):
			}
		}
	}

	if m.metrics != nil {
		if pending, err := m.Pending(ctx); err == nil {
			m.metrics.BufferPending.Set(float64(pending))
		}
	}

	return synced, nil
}

// syncChunk applies one chunk of staged entries. Per-mint failures are
// logged and left in place; the rest of the chunk proceeds.
func (m *Manager) syncChunk(ctx context.Context, mints []string) int {
	synced := 0
	for _, mint := range mints {
		fields, err := m.client.HGetAll(ctx, stageKeyPrefix+mint).Result()
		if err != nil {
			m.logger.Printf("read staged fields for %s: %v", mint, err)
			if m.metrics != nil {
				m.metrics.BufferErrors.Inc()
			}
			continue
		}

		if len(fields) == 0 {
			// Stage hash TTL-expired; nothing left to apply.
			m.client.SRem(ctx, pendingSetKey, mint)
			continue
		}

		if err := m.store.Upsert(ctx, mint, fields); err != nil {
			m.logger.Printf("flush staged fields for %s: %v", mint, err)
			if m.metrics != nil {
				m.metrics.BufferErrors.Inc()
			}
			continue
		}

		pipe := m.client.Pipeline()
		pipe.Del(ctx, stageKeyPrefix+mint)
		pipe.SRem(ctx, pendingSetKey, mint)
		if _, err := pipe.Exec(ctx); err != nil {
			// The durable write landed; a re-flush next cycle is a
			// harmless repeat of the same upsert.
			m.logger.Printf("clear staged entry for %s: %v", mint, err)
		}

		synced++
		if m.metrics != nil {
			m.metrics.BufferSynced.Inc()
		}
	}
	return synced
}
