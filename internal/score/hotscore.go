// Package score computes the hot score used to rank feed listings.
package score

import "math"

// Weights holds the hot score blend parameters.
type Weights struct {
	// Recency is the weight of the age component.
	Recency float64
	// RecencyWindowMinutes is the age at which the recency component
	// reaches zero.
	RecencyWindowMinutes float64
	// Liquidity is the weight of the liquidity component.
	Liquidity float64
	// LiquidityTargetUSD is the liquidity at which the component maxes out.
	LiquidityTargetUSD float64
	// Watcher is the weight of the watcher component.
	Watcher float64
	// PerWatcherPoints is how many points each watcher contributes.
	PerWatcherPoints float64
	// WatcherCap bounds the watcher component.
	WatcherCap float64
}

// DefaultWeights returns the default hot score parameters.
func DefaultWeights() Weights {
	return Weights{
		Recency:              0.4,
		RecencyWindowMinutes: 24 * 60,
		Liquidity:            0.35,
		LiquidityTargetUSD:   50_000,
		Watcher:              0.25,
		PerWatcherPoints:     5,
		WatcherCap:           100,
	}
}

// HotScore blends recency, liquidity and watcher interest into a 0-100
// ranking value. Pure and deterministic: identical inputs always yield
// the identical score.
func HotScore(ageMinutes float64, liquidityUSD float64, watcherCount int, w Weights) int {
	recency := 0.0
	if ageMinutes < w.RecencyWindowMinutes {
		if ageMinutes < 0 {
			ageMinutes = 0
		}
		recency = (1 - ageMinutes/w.RecencyWindowMinutes) * 100
	}

	liquidity := 0.0
	if liquidityUSD > 0 && w.LiquidityTargetUSD > 0 {
		liquidity = math.Min(liquidityUSD/w.LiquidityTargetUSD, 1) * 100
	}

	watcher := math.Min(float64(watcherCount)*w.PerWatcherPoints, w.WatcherCap)

	raw := w.Recency*recency + w.Liquidity*liquidity + w.Watcher*watcher

	scored := int(math.Round(raw))
	if scored < 0 {
		return 0
	}
	if scored > 100 {
		return 100
	}
	return scored
}
