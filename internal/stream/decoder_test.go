package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNow int64 = 1700000000000

func TestDecodeMessage_NewToken(t *testing.T) {
	raw := []byte(`{
		"txType": "create",
		"mint": "MintAddr1111111111111111111111111111111111",
		"name": "Test Token",
		"symbol": "TT",
		"uri": "https://example.com/meta.json",
		"traderPublicKey": "Creator111111111111111111111111111111111111",
		"bondingCurveKey": "Curve1111111111111111111111111111111111111",
		"marketCapSol": 30.5
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	require.Equal(t, KindNewToken, msg.Kind)
	require.NotNil(t, msg.NewToken)

	ev := msg.NewToken
	assert.Equal(t, "MintAddr1111111111111111111111111111111111", ev.Mint)
	assert.Equal(t, "Test Token", ev.Name)
	assert.Equal(t, "TT", ev.Symbol)
	assert.Equal(t, "Creator111111111111111111111111111111111111", ev.Creator)
	assert.Equal(t, "Curve1111111111111111111111111111111111111", ev.BondingCurve)
	assert.Equal(t, 30.5, ev.MarketCapSol)
	assert.Equal(t, testNow, ev.Timestamp)
}

func TestDecodeMessage_NestedMint(t *testing.T) {
	// Same logical event with the mint nested under data.
	raw := []byte(`{
		"type": "newToken",
		"data": {"mint": "Nested111111111111111111111111111111111111", "name": "Nested"}
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	require.Equal(t, KindNewToken, msg.Kind)
	assert.Equal(t, "Nested111111111111111111111111111111111111", msg.NewToken.Mint)
	assert.Equal(t, "Nested", msg.NewToken.Name)
}

func TestDecodeMessage_TokenWrappedMint(t *testing.T) {
	raw := []byte(`{
		"type": "newToken",
		"token": {"mint": "Wrapped11111111111111111111111111111111111"}
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Wrapped11111111111111111111111111111111111", msg.NewToken.Mint)
}

func TestDecodeMessage_Migration(t *testing.T) {
	raw := []byte(`{
		"txType": "migrate",
		"mint": "MintAddr1111111111111111111111111111111111",
		"poolAddress": "Pool11111111111111111111111111111111111111",
		"poolType": "raydium",
		"status": "migrated",
		"timestamp": 1700000123456
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	require.Equal(t, KindMigration, msg.Kind)

	ev := msg.Migration
	assert.Equal(t, "Pool11111111111111111111111111111111111111", ev.PoolAddress)
	assert.Equal(t, "raydium", ev.PoolType)
	assert.Equal(t, "migrated", ev.Status)
	assert.Equal(t, int64(1700000123456), ev.Timestamp)
}

func TestDecodeMessage_MigrationPoolAlias(t *testing.T) {
	// Pool address under "pool" instead of "poolAddress".
	raw := []byte(`{
		"type": "migration",
		"mint": "MintAddr1111111111111111111111111111111111",
		"pool": "Alias1111111111111111111111111111111111111"
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Alias1111111111111111111111111111111111111", msg.Migration.PoolAddress)
}

func TestDecodeMessage_Swap(t *testing.T) {
	raw := []byte(`{
		"txType": "buy",
		"mint": "MintAddr1111111111111111111111111111111111",
		"signature": "Sig111",
		"solAmount": 1.25,
		"tokenAmount": 10000,
		"marketCapSol": 55.1,
		"traderPublicKey": "Trader11111111111111111111111111111111111"
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	require.Equal(t, KindSwap, msg.Kind)

	ev := msg.Swap
	assert.Equal(t, "buy", ev.Side)
	assert.Equal(t, 1.25, ev.SolAmount)
	assert.Equal(t, "Sig111", ev.TxSignature)
	// Feed omitted progress
	assert.Equal(t, -1.0, ev.BondingCurveProgress)
}

func TestDecodeMessage_SwapWithProgress(t *testing.T) {
	raw := []byte(`{
		"txType": "sell",
		"mint": "MintAddr1111111111111111111111111111111111",
		"bondingCurveProgress": 87.5
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, 87.5, msg.Swap.BondingCurveProgress)
}

func TestDecodeMessage_NewPool(t *testing.T) {
	raw := []byte(`{
		"type": "newPool",
		"baseMint": "Base11111111111111111111111111111111111111",
		"quoteMint": "So11111111111111111111111111111111111111112",
		"poolAddress": "Pool11111111111111111111111111111111111111",
		"poolType": "raydium"
	}`)

	msg, err := DecodeMessage(raw, testNow)
	require.NoError(t, err)
	require.Equal(t, KindNewPool, msg.Kind)
	assert.Equal(t, "Base11111111111111111111111111111111111111", msg.NewPool.BaseMint)

	// Alias field names
	raw = []byte(`{"type": "newPool", "mintA": "A1111", "mintB": "B1111"}`)
	msg, err = DecodeMessage(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "A1111", msg.NewPool.BaseMint)
	assert.Equal(t, "B1111", msg.NewPool.QuoteMint)
}

func TestDecodeMessage_Info(t *testing.T) {
	msg, err := DecodeMessage([]byte(`{"message": "Successfully subscribed to token creation events."}`), testNow)
	require.NoError(t, err)
	assert.Equal(t, KindInfo, msg.Kind)
}

func TestDecodeMessage_Malformed(t *testing.T) {
	_, err := DecodeMessage([]byte(`{not json`), testNow)
	assert.Error(t, err)
}

func TestDecodeMessage_UnrecognizedShape(t *testing.T) {
	cases := [][]byte{
		[]byte(`{}`),
		[]byte(`{"mint": "OrphanMint"}`),
		[]byte(`{"txType": "create"}`),            // newToken without any mint
		[]byte(`{"type": "newPool", "mintA": "A"}`), // missing second mint
	}
	for _, raw := range cases {
		_, err := DecodeMessage(raw, testNow)
		assert.ErrorIs(t, err, ErrUnrecognized, "payload: %s", raw)
	}
}
