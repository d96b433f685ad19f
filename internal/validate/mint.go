// Package validate provides mint-address and timestamp sanity checks used
// by every ingress path.
package validate

import (
	"crypto/sha256"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PumpFunProgram is the pump.fun bonding curve program ID.
const PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

const (
	minMintLen = 32
	maxMintLen = 44
)

// Timestamp sanity bounds in milliseconds.
const (
	maxTimestampAgeMs  int64 = 5 * 365 * 24 * 3600 * 1000
	maxTimestampSkewMs int64 = 5 * 60 * 1000
)

// IsValidMint reports whether s looks like a well-formed base58 mint
// address. It rejects known-bad forms seen on noisy public feeds:
// placeholder strings ("undefined", "null"), embedded spaces, and
// fabricated addresses ending in "pump".
func IsValidMint(s string) bool {
	if len(s) < minMintLen || len(s) > maxMintLen {
		return false
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "undefined") || strings.Contains(lower, "null") {
		return false
	}
	if strings.ContainsRune(s, ' ') {
		return false
	}
	if strings.HasSuffix(lower, "pump") {
		return false
	}
	decoded, err := base58.Decode(s)
	if err != nil || len(decoded) == 0 {
		return false
	}
	return true
}

// IsSaneTimestamp reports whether ts (Unix ms) is plausible relative to
// now: not more than five years in the past and not more than five
// minutes in the future.
func IsSaneTimestamp(ts, now int64) bool {
	if ts <= 0 {
		return false
	}
	return ts >= now-maxTimestampAgeMs && ts <= now+maxTimestampSkewMs
}

// DeriveBondingCurve derives the pump.fun bonding curve PDA for a mint.
// Returns "" if the mint does not decode or no off-curve bump exists.
func DeriveBondingCurve(mint string) string {
	mintBytes, err := base58.Decode(mint)
	if err != nil || len(mintBytes) != 32 {
		return ""
	}
	programID, err := base58.Decode(PumpFunProgram)
	if err != nil {
		return ""
	}

	seeds := [][]byte{[]byte("bonding-curve"), mintBytes}

	for bump := byte(255); bump > 0; bump-- {
		var data []byte
		for _, seed := range seeds {
			data = append(data, seed...)
		}
		data = append(data, bump)
		data = append(data, programID...)
		data = append(data, []byte("ProgramDerivedAddress")...)

		hash := sha256.Sum256(data)

		// PDA must be off the ed25519 curve
		if !isOnCurve(hash[:]) {
			return base58.Encode(hash[:])
		}
	}

	return ""
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
