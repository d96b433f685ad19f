package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidMint_Accepts(t *testing.T) {
	valid := []string{
		"So11111111111111111111111111111111111111112",
		"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
		"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		strings.Repeat("1", 32),
	}
	for _, mint := range valid {
		assert.True(t, IsValidMint(mint), "expected valid: %s", mint)
	}
}

func TestIsValidMint_Rejects(t *testing.T) {
	cases := map[string]string{
		"too short":          strings.Repeat("1", 31),
		"too long":           strings.Repeat("1", 45),
		"empty":              "",
		"non-base58 zero":    strings.Repeat("0", 40),
		"non-base58 letter":  strings.Repeat("l", 40),
		"pump suffix":        strings.Repeat("1", 28) + "pump",
		"PUMP suffix upper":  strings.Repeat("1", 28) + "PUMP",
		"Pump suffix mixed":  strings.Repeat("1", 28) + "Pump",
		"undefined embedded": "undefined1111111111111111111111111111111",
		"null embedded":      "null111111111111111111111111111111111111",
		"embedded space":     strings.Repeat("1", 20) + " " + strings.Repeat("1", 15),
	}
	for name, mint := range cases {
		assert.False(t, IsValidMint(mint), "case %q: expected invalid: %s", name, mint)
	}
}

func TestIsSaneTimestamp(t *testing.T) {
	now := time.Now().UnixMilli()

	assert.True(t, IsSaneTimestamp(now, now))
	assert.True(t, IsSaneTimestamp(now-3600_000, now))
	assert.True(t, IsSaneTimestamp(now+60_000, now))

	assert.False(t, IsSaneTimestamp(0, now))
	assert.False(t, IsSaneTimestamp(-1, now))
	assert.False(t, IsSaneTimestamp(now+10*60*1000, now))
	assert.False(t, IsSaneTimestamp(now-6*365*24*3600*1000, now))
}

func TestDeriveBondingCurve(t *testing.T) {
	mint := "So11111111111111111111111111111111111111112"

	pda := DeriveBondingCurve(mint)
	require.NotEmpty(t, pda)
	assert.True(t, IsValidMint(pda) || strings.HasSuffix(strings.ToLower(pda), "pump"))

	// Deterministic
	assert.Equal(t, pda, DeriveBondingCurve(mint))

	// Garbage in, empty out
	assert.Empty(t, DeriveBondingCurve("not-a-mint"))
	assert.Empty(t, DeriveBondingCurve(""))
}
