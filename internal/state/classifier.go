// Package state implements token lifecycle classification and the single
// sanctioned transition path.
package state

import (
	"time"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// Policy holds the externally configured classification thresholds.
// None of these are baked into the decision function.
type Policy struct {
	// GraduatingMaxProgress is the bonding curve progress at which a
	// token counts as bonded (percent).
	GraduatingMaxProgress float64
	// AboutToBondProgress is the progress threshold for about_to_bond.
	AboutToBondProgress float64
	// AboutToBondWindow is how recent the last trade must be for
	// about_to_bond.
	AboutToBondWindow time.Duration
	// DeadTokenWindow is the trade silence after which a token is dead.
	DeadTokenWindow time.Duration
	// MinDeadVolume is the 24h volume below which a token is dead.
	MinDeadVolume float64
	// MinActiveVolume is the 24h volume required for active.
	MinActiveVolume float64
	// MinHolders is the holder count required for active.
	MinHolders int
	// RecentTradeWindow bounds what counts as a recent trade for active.
	RecentTradeWindow time.Duration
}

// DefaultPolicy returns default classification thresholds.
func DefaultPolicy() Policy {
	return Policy{
		GraduatingMaxProgress: 98,
		AboutToBondProgress:   85,
		AboutToBondWindow:     30 * time.Minute,
		DeadTokenWindow:       72 * time.Hour,
		MinDeadVolume:         50,
		MinActiveVolume:       500,
		MinHolders:            10,
		RecentTradeWindow:     1 * time.Hour,
	}
}

// Classify decides the lifecycle state for a snapshot at time nowMs.
// Pure function; first matching rule wins:
//
//  1. graduated or progress at the graduation ceiling -> bonded
//  2. no trade observed yet                           -> launching
//  3. near graduation with a recent trade             -> about_to_bond
//  4. long trade silence or negligible volume         -> dead
//  5. sustained activity                              -> active,
//     otherwise launching
func Classify(snap domain.StateSnapshot, policy Policy, nowMs int64) domain.TokenState {
	if snap.Graduated || snap.BondingCurveProgress >= policy.GraduatingMaxProgress {
		return domain.StateBonded
	}

	if snap.LastTradeAt <= 0 {
		return domain.StateLaunching
	}

	sinceTrade := time.Duration(nowMs-snap.LastTradeAt) * time.Millisecond

	if snap.BondingCurveProgress >= policy.AboutToBondProgress && sinceTrade < policy.AboutToBondWindow {
		return domain.StateAboutToBond
	}

	if sinceTrade > policy.DeadTokenWindow || snap.Volume24h < policy.MinDeadVolume {
		return domain.StateDead
	}

	if sinceTrade < policy.RecentTradeWindow &&
		snap.Volume24h >= policy.MinActiveVolume &&
		snap.HolderCount >= policy.MinHolders {
		return domain.StateActive
	}

	return domain.StateLaunching
}
