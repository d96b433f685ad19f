package txcount

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountDistinctTransactions(t *testing.T) {
	c := NewCounter(DefaultConfig())

	c.Add("MintA", "tx1")
	c.Add("MintA", "tx2")
	c.Add("MintA", "tx2")
	c.Add("MintB", "tx1")

	assert.Equal(t, 2, c.Count("MintA"))
	assert.Equal(t, 1, c.Count("MintB"))
	assert.Zero(t, c.Count("MintUnknown"))
}

func TestIgnoresEmptyInput(t *testing.T) {
	c := NewCounter(DefaultConfig())

	c.Add("", "tx1")
	c.Add("MintA", "")

	assert.Zero(t, c.Size())
}

func TestCleanupBoundsTrackedMints(t *testing.T) {
	c := NewCounter(Config{MaxSize: 1000, MaxAge: 24 * time.Hour})

	for i := 0; i < 1001; i++ {
		c.Add(fmt.Sprintf("Mint%04d", i), "tx1")
	}

	assert.LessOrEqual(t, c.Size(), 1000)
}

func TestCleanupPrefersStaleEntries(t *testing.T) {
	c := NewCounter(Config{MaxSize: 2, MaxAge: time.Hour})

	clock := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return clock }

	c.Add("MintStale", "tx1")

	clock = clock.Add(2 * time.Hour)
	c.Add("MintFresh1", "tx1")
	c.Add("MintFresh2", "tx1")
	c.Add("MintFresh3", "tx1")

	assert.Zero(t, c.Count("MintStale"), "entries past max age are purged first")
	assert.LessOrEqual(t, c.Size(), 2)
}

func TestCleanupEvictsLeastRecentlyUpdated(t *testing.T) {
	c := NewCounter(Config{MaxSize: 2, MaxAge: 24 * time.Hour})

	clock := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return clock }

	c.Add("MintOld", "tx1")
	clock = clock.Add(time.Minute)
	c.Add("MintMid", "tx1")
	clock = clock.Add(time.Minute)
	c.Add("MintOld", "tx2")
	clock = clock.Add(time.Minute)
	c.Add("MintNew", "tx1")

	assert.Zero(t, c.Count("MintMid"), "the least recently updated mint is evicted")
	assert.Equal(t, 2, c.Count("MintOld"))
	assert.Equal(t, 1, c.Count("MintNew"))
}
