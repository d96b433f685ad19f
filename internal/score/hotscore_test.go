package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHotScore_Deterministic(t *testing.T) {
	w := DefaultWeights()

	first := HotScore(30, 12_000, 4, w)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, HotScore(30, 12_000, 4, w))
	}
}

func TestHotScore_Bounds(t *testing.T) {
	w := DefaultWeights()

	cases := []struct {
		age      float64
		liq      float64
		watchers int
	}{
		{0, 0, 0},
		{0, 1_000_000, 1000},
		{1e9, 0, 0},
		{-5, 50_000, 3},
		{60, 25_000, 7},
	}
	for _, tc := range cases {
		got := HotScore(tc.age, tc.liq, tc.watchers, w)
		assert.GreaterOrEqual(t, got, 0, "age=%v liq=%v watchers=%d", tc.age, tc.liq, tc.watchers)
		assert.LessOrEqual(t, got, 100, "age=%v liq=%v watchers=%d", tc.age, tc.liq, tc.watchers)
	}
}

func TestHotScore_FreshTokenOutranksOldToken(t *testing.T) {
	w := DefaultWeights()

	fresh := HotScore(1, 10_000, 2, w)
	old := HotScore(23*60, 10_000, 2, w)
	assert.Greater(t, fresh, old)
}

func TestHotScore_RecencyDecaysToZero(t *testing.T) {
	w := DefaultWeights()

	// Beyond the window only liquidity and watchers contribute.
	atWindow := HotScore(w.RecencyWindowMinutes, 0, 0, w)
	assert.Zero(t, atWindow)
}

func TestHotScore_LiquiditySaturates(t *testing.T) {
	w := DefaultWeights()

	atTarget := HotScore(1e9, w.LiquidityTargetUSD, 0, w)
	beyond := HotScore(1e9, w.LiquidityTargetUSD*100, 0, w)
	assert.Equal(t, atTarget, beyond)
}

func TestHotScore_WatcherCap(t *testing.T) {
	w := DefaultWeights()

	capped := HotScore(1e9, 0, int(w.WatcherCap/w.PerWatcherPoints), w)
	beyond := HotScore(1e9, 0, 10_000, w)
	assert.Equal(t, capped, beyond)
}
