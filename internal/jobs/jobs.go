// Package jobs defines the background jobs driven by the scheduler:
// hot-score recomputation, lifecycle cleanup and buffer flush.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Shillz96/solsim-sub011/internal/buffer"
	"github.com/Shillz96/solsim-sub011/internal/cache"
	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/notify"
	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/scheduler"
	"github.com/Shillz96/solsim-sub011/internal/score"
	"github.com/Shillz96/solsim-sub011/internal/state"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// Config carries the job intervals and batch bounds.
type Config struct {
	ScoreInterval   time.Duration
	CleanupInterval time.Duration
	SyncInterval    time.Duration
	// ScoreBatchSize bounds how many tokens one score tick recomputes.
	ScoreBatchSize int
	// DeadRetention is how long dead rows are kept before deletion.
	DeadRetention time.Duration
}

// DefaultConfig returns default job configuration.
func DefaultConfig() Config {
	return Config{
		ScoreInterval:   2 * time.Minute,
		CleanupInterval: 10 * time.Minute,
		SyncInterval:    30 * time.Second,
		ScoreBatchSize:  500,
		DeadRetention:   7 * 24 * time.Hour,
	}
}

// Deps are the collaborators the jobs operate on.
type Deps struct {
	Store    storage.TokenStore
	Buffer   *buffer.Manager
	Cache    *cache.Manager
	State    *state.Manager
	Registry notify.Registry
	Weights  score.Weights
	Logger   *log.Logger
	Metrics  *observability.Metrics
	Now      func() int64
}

// Runner owns the job bodies.
type Runner struct {
	deps   Deps
	config Config
}

// NewRunner creates a job runner.
func NewRunner(deps Deps, cfg Config) *Runner {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.Now == nil {
		deps.Now = func() int64 { return time.Now().UnixMilli() }
	}
	if cfg.ScoreBatchSize <= 0 {
		cfg.ScoreBatchSize = DefaultConfig().ScoreBatchSize
	}
	return &Runner{deps: deps, config: cfg}
}

// RegisterAll registers every job with the scheduler.
func (r *Runner) RegisterAll(mgr *scheduler.Manager) error {
	jobs := []*scheduler.Job{
		{Name: "hot_score", Interval: r.config.ScoreInterval, Run: r.RecomputeScores},
		{Name: "cleanup", Interval: r.config.CleanupInterval, Run: r.Cleanup},
		{Name: "buffer_sync", Interval: r.config.SyncInterval, Run: r.SyncBuffer},
	}
	for _, job := range jobs {
		if err := mgr.Register(job); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeScores recalculates the hot score of every non-dead token,
// stages changed scores for the next flush and re-ranks the cache
// indexes. Per-token failures are logged and skipped.
func (r *Runner) RecomputeScores(ctx context.Context) error {
	tokens, err := r.deps.Store.ListForScoring(ctx, r.config.ScoreBatchSize)
	if err != nil {
		return fmt.Errorf("list tokens for scoring: %w", err)
	}

	nowMs := r.deps.Now()
	for _, tok := range tokens {
		watchers := tok.WatcherCount
		if r.deps.Registry != nil {
			if n, err := r.deps.Registry.WatcherCount(ctx, tok.Mint); err == nil {
				watchers = n
			}
		}

		ageMinutes := float64(nowMs-tok.FirstSeenAt) / float64(time.Minute.Milliseconds())
		newScore := score.HotScore(ageMinutes, tok.LiquidityUSD, watchers, r.deps.Weights)
		if newScore == tok.HotScore && watchers == tok.WatcherCount {
			continue
		}

		fields := map[string]string{
			storage.FieldHotScore: storage.Int(int64(newScore)),
		}
		if watchers != tok.WatcherCount {
			fields[storage.FieldWatcherCount] = storage.Int(int64(watchers))
		}
		if err := r.deps.Buffer.Buffer(ctx, tok.Mint, fields); err != nil {
			r.deps.Logger.Printf("stage score for %s: %v", tok.Mint, err)
			continue
		}
		if r.deps.Cache != nil {
			if err := r.deps.Cache.UpdateScore(ctx, tok.Mint, tok.State, newScore); err != nil {
				r.deps.Logger.Printf("re-rank %s: %v", tok.Mint, err)
			}
		}
	}
	return nil
}

// Cleanup reclassifies every non-dead token against the lifecycle
// policy (stale tokens transition to dead), deletes dead rows past the
// retention window with their cache entries, and refreshes the
// per-state gauge.
func (r *Runner) Cleanup(ctx context.Context) error {
	tokens, err := r.deps.Store.ListForScoring(ctx, 0)
	if err != nil {
		return fmt.Errorf("list tokens for cleanup: %w", err)
	}

	nowMs := r.deps.Now()
	for _, tok := range tokens {
		next := r.deps.State.ClassifyToken(tok)
		if next == tok.State {
			continue
		}
		if err := r.deps.State.UpdateState(ctx, tok.Mint, next, tok.State); err != nil {
			r.deps.Logger.Printf("reclassify %s: %v", tok.Mint, err)
		}
	}

	cutoffMs := nowMs - r.config.DeadRetention.Milliseconds()
	if r.deps.Cache != nil {
		expired, err := r.deps.Store.ListByState(ctx, domain.StateDead, 0)
		if err != nil {
			return fmt.Errorf("list dead tokens: %w", err)
		}
		for _, tok := range expired {
			if tok.LastUpdatedAt >= cutoffMs {
				continue
			}
			if err := r.deps.Cache.Remove(ctx, tok.Mint); err != nil {
				r.deps.Logger.Printf("prune cache for %s: %v", tok.Mint, err)
			}
		}
	}

	removed, err := r.deps.Store.DeleteDeadBefore(ctx, cutoffMs)
	if err != nil {
		return fmt.Errorf("delete dead tokens: %w", err)
	}
	if removed > 0 {
		r.deps.Logger.Printf("deleted %d dead tokens past retention", removed)
	}

	if r.deps.Metrics != nil {
		counts, err := r.deps.Store.CountByState(ctx)
		if err != nil {
			return fmt.Errorf("count tokens by state: %w", err)
		}
		for state, count := range counts {
			r.deps.Metrics.TokensByState.WithLabelValues(string(state)).Set(float64(count))
		}
	}
	return nil
}

// SyncBuffer flushes the staged write-behind entries.
func (r *Runner) SyncBuffer(ctx context.Context) error {
	synced, err := r.deps.Buffer.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync buffer: %w", err)
	}
	if synced > 0 {
		r.deps.Logger.Printf("synced %d buffered tokens", synced)
	}
	return nil
}
