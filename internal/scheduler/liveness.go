package scheduler

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Liveness keys maintained by the serving process. This core only reads
// them.
const (
	activeUsersKey  = "system:active_users"
	lastActivityKey = "system:last_activity"
)

// Gate reports whether background work is worth running right now.
type Gate interface {
	Active(ctx context.Context) bool
}

// AlwaysActive is a Gate that never skips. Used when no liveness signal
// is available.
type AlwaysActive struct{}

func (AlwaysActive) Active(context.Context) bool { return true }

// RedisGate judges liveness from the serving process's activity keys:
// the system is active when any user is connected or the last recorded
// activity falls within the idle window. Read errors fail open so a
// degraded Redis never starves background recomputation.
type RedisGate struct {
	client     *redis.Client
	idleWindow time.Duration
	logger     *log.Logger
	now        func() time.Time
}

// NewRedisGate creates a gate with the given idle window.
func NewRedisGate(client *redis.Client, idleWindow time.Duration, logger *log.Logger) *RedisGate {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisGate{
		client:     client,
		idleWindow: idleWindow,
		logger:     logger,
		now:        time.Now,
	}
}

var _ Gate = (*RedisGate)(nil)

// Active implements Gate.
func (g *RedisGate) Active(ctx context.Context) bool {
	users, err := g.client.SCard(ctx, activeUsersKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		g.logger.Printf("read %s: %v", activeUsersKey, err)
		return true
	}
	if users > 0 {
		return true
	}

	raw, err := g.client.Get(ctx, lastActivityKey).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		g.logger.Printf("read %s: %v", lastActivityKey, err)
		return true
	}

	lastMs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		g.logger.Printf("parse %s value %q: %v", lastActivityKey, raw, err)
		return true
	}
	return g.now().UnixMilli()-lastMs <= g.idleWindow.Milliseconds()
}
