// Package notify models outbound notifications as messages published to
// a channel, and tracks which users watch which mints. The state manager
// decides that a notification is due; delivery belongs to whoever
// consumes the channel.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// Channel is the pub/sub channel notifications are published to.
const Channel = "notifications:token"

// watchersKeyPrefix namespaces the per-mint watcher sets.
const watchersKeyPrefix = "token:watchers:"

// Event is one outbound notification.
type Event struct {
	UserID   string            `json:"userId"`
	Mint     string            `json:"mint"`
	Kind     string            `json:"kind"` // "graduation" | "about_to_bond"
	OldState domain.TokenState `json:"oldState"`
	NewState domain.TokenState `json:"newState"`
	At       int64             `json:"at"` // Unix ms
}

// Publisher emits notification events to an outbound channel.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Registry looks up which users registered interest in a mint.
type Registry interface {
	// Watchers returns the user ids watching a mint.
	Watchers(ctx context.Context, mint string) ([]string, error)

	// WatcherCount returns the number of users watching a mint.
	WatcherCount(ctx context.Context, mint string) (int, error)
}

// RedisNotifier implements Publisher and Registry on Redis. Watcher set
// membership is written by the serving process; this core only reads it.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a notifier on an existing Redis client.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

var (
	_ Publisher = (*RedisNotifier)(nil)
	_ Registry  = (*RedisNotifier)(nil)
)

// Publish sends the event to the notification channel.
func (n *RedisNotifier) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Watchers returns the user ids watching a mint.
func (n *RedisNotifier) Watchers(ctx context.Context, mint string) ([]string, error) {
	users, err := n.client.SMembers(ctx, watchersKeyPrefix+mint).Result()
	if err != nil {
		return nil, fmt.Errorf("read watchers for %s: %w", mint, err)
	}
	return users, nil
}

// WatcherCount returns the number of users watching a mint.
func (n *RedisNotifier) WatcherCount(ctx context.Context, mint string) (int, error) {
	count, err := n.client.SCard(ctx, watchersKeyPrefix+mint).Result()
	if err != nil {
		return 0, fmt.Errorf("count watchers for %s: %w", mint, err)
	}
	return int(count), nil
}
