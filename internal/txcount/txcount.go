// Package txcount tracks approximate distinct-transaction counts per
// mint. Counts live in process memory only and are rebuilt from live
// traffic after a restart; they are never a source of truth.
package txcount

import (
	"sort"
	"sync"
	"time"
)

// Config bounds the counter's memory footprint.
type Config struct {
	// MaxSize caps the number of tracked mints.
	MaxSize int
	// MaxAge drops mints that have not traded recently during cleanup.
	MaxAge time.Duration
}

// DefaultConfig returns default counter configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize: 1000,
		MaxAge:  24 * time.Hour,
	}
}

type entry struct {
	txIDs     map[string]struct{}
	updatedAt time.Time
}

// Counter is a bounded per-mint distinct-transaction counter.
type Counter struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	now     func() time.Time
}

// NewCounter creates a counter with the given configuration.
func NewCounter(cfg Config) *Counter {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultConfig().MaxAge
	}
	return &Counter{
		entries: make(map[string]*entry),
		config:  cfg,
		now:     time.Now,
	}
}

// Add records a transaction id for a mint. Duplicate ids for the same
// mint are counted once.
func (c *Counter) Add(mint, txID string) {
	if mint == "" || txID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[mint]
	if !ok {
		e = &entry{txIDs: make(map[string]struct{})}
		c.entries[mint] = e
	}
	e.txIDs[txID] = struct{}{}
	e.updatedAt = c.now()

	if len(c.entries) > c.config.MaxSize {
		c.cleanupLocked()
	}
}

// Count returns the distinct-transaction count for a mint, 0 if the
// mint is not tracked.
func (c *Counter) Count(mint string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[mint]
	if !ok {
		return 0
	}
	return len(e.txIDs)
}

// Size returns the number of tracked mints.
func (c *Counter) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanupLocked first drops mints older than MaxAge, then evicts the
// least-recently-updated mints until under capacity. Caller holds mu.
func (c *Counter) cleanupLocked() {
	cutoff := c.now().Add(-c.config.MaxAge)
	for mint, e := range c.entries {
		if e.updatedAt.Before(cutoff) {
			delete(c.entries, mint)
		}
	}

	if len(c.entries) <= c.config.MaxSize {
		return
	}

	type aged struct {
		mint      string
		updatedAt time.Time
	}
	byAge := make([]aged, 0, len(c.entries))
	for mint, e := range c.entries {
		byAge = append(byAge, aged{mint: mint, updatedAt: e.updatedAt})
	}
	sort.Slice(byAge, func(i, j int) bool {
		return byAge[i].updatedAt.Before(byAge[j].updatedAt)
	})

	for _, a := range byAge[:len(byAge)-c.config.MaxSize] {
		delete(c.entries, a.mint)
	}
}
