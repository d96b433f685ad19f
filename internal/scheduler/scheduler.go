// Package scheduler runs named background jobs on independent interval
// timers with liveness gating and per-tick failure isolation.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shillz96/solsim-sub011/internal/observability"
)

// Job is a named unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	running atomic.Bool
}

// Manager owns the job timers. Jobs are registered before Start; each
// job ticks on its own timer and a slow tick never delays another job.
type Manager struct {
	gate    Gate
	logger  *log.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	jobs    []*Job
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Options contains configuration for creating a Manager.
type Options struct {
	Gate    Gate
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewManager creates a job manager.
func NewManager(opts Options) *Manager {
	gate := opts.Gate
	if gate == nil {
		gate = AlwaysActive{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		gate:    gate,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Register adds a job. Returns an error after Start or for an invalid
// job definition.
func (m *Manager) Register(job *Job) error {
	if job == nil || job.Name == "" || job.Interval <= 0 || job.Run == nil {
		return fmt.Errorf("invalid job definition")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("register %s: manager already started", job.Name)
	}
	for _, existing := range m.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("register %s: duplicate job name", job.Name)
		}
	}
	m.jobs = append(m.jobs, job)
	return nil
}

// Start launches one timer goroutine per registered job.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	for _, job := range m.jobs {
		m.wg.Add(1)
		go m.runLoop(ctx, job)
	}
	m.logger.Printf("started %d jobs", len(m.jobs))
}

// StopAll tears down every timer and waits for in-flight ticks.
func (m *Manager) StopAll() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Jobs returns the registered job names.
func (m *Manager) Jobs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, len(m.jobs))
	for i, job := range m.jobs {
		names[i] = job.Name
	}
	return names
}

// JobCount returns the number of registered jobs.
func (m *Manager) JobCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *Manager) runLoop(ctx context.Context, job *Job) {
	defer m.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, job)
		}
	}
}

// tick runs one job invocation. Skips when the system is idle or the
// previous tick is still running; failures and panics are contained to
// this tick.
func (m *Manager) tick(ctx context.Context, job *Job) {
	if !m.gate.Active(ctx) {
		m.skip(job, "idle")
		return
	}
	if !job.running.CompareAndSwap(false, true) {
		m.skip(job, "overlap")
		return
	}
	defer job.running.Store(false)

	start := time.Now()
	defer func() {
		if m.metrics != nil {
			m.metrics.JobDuration.WithLabelValues(job.Name).Observe(time.Since(start).Seconds())
		}
		if r := recover(); r != nil {
			m.logger.Printf("job %s panicked: %v", job.Name, r)
			if m.metrics != nil {
				m.metrics.JobErrors.WithLabelValues(job.Name).Inc()
			}
		}
	}()

	if m.metrics != nil {
		m.metrics.JobRuns.WithLabelValues(job.Name).Inc()
	}
	if err := job.Run(ctx); err != nil {
		m.logger.Printf("job %s: %v", job.Name, err)
		if m.metrics != nil {
			m.metrics.JobErrors.WithLabelValues(job.Name).Inc()
		}
	}
}

func (m *Manager) skip(job *Job, reason string) {
	m.logger.Printf("job %s skipped: %s", job.Name, reason)
	if m.metrics != nil {
		m.metrics.JobSkips.WithLabelValues(job.Name, reason).Inc()
	}
}
