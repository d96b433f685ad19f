package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

func setupNotifier(t *testing.T) (*RedisNotifier, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisNotifier(client), client
}

func TestPublishDeliversToSubscribers(t *testing.T) {
	ctx := context.Background()
	notifier, client := setupNotifier(t)

	sub := client.Subscribe(ctx, Channel)
	t.Cleanup(func() { sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription confirmation")

	ev := Event{
		UserID:   "user1",
		Mint:     "MintNotify11111111111111111111111111111111A",
		Kind:     "graduation",
		OldState: domain.StateAboutToBond,
		NewState: domain.StateBonded,
		At:       time.Now().UnixMilli(),
	}
	require.NoError(t, notifier.Publish(ctx, ev))

	msg, err := sub.ReceiveTimeout(ctx, 2*time.Second)
	require.NoError(t, err)
	payload, ok := msg.(*redis.Message)
	require.True(t, ok)

	var got Event
	require.NoError(t, json.Unmarshal([]byte(payload.Payload), &got))
	assert.Equal(t, ev, got)
}

func TestWatcherRegistryReads(t *testing.T) {
	ctx := context.Background()
	notifier, client := setupNotifier(t)

	mint := "MintWatch111111111111111111111111111111111A"
	require.NoError(t, client.SAdd(ctx, "token:watchers:"+mint, "alice", "bob").Err())

	users, err := notifier.Watchers(ctx, mint)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)

	count, err := notifier.WatcherCount(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = notifier.WatcherCount(ctx, "MintNobody1111111111111111111111111111111AB")
	require.NoError(t, err)
	assert.Zero(t, count)
}
