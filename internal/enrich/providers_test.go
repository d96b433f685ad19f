package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCAuthorityProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getAccountInfo", req.Method)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"data":{"parsed":{"info":{"freezeAuthority":null,"mintAuthority":"SomeAuthority"}}}}}}`))
	}))
	defer srv.Close()

	provider := NewRPCAuthorityProvider(srv.URL, srv.Client())
	info, err := provider.AuthorityInfo(context.Background(), testMint)
	require.NoError(t, err)
	assert.True(t, info.FreezeRevoked)
	assert.False(t, info.MintRenounced)
}

func TestRPCAuthorityProviderMissingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":null}}`))
	}))
	defer srv.Close()

	provider := NewRPCAuthorityProvider(srv.URL, srv.Client())
	_, err := provider.AuthorityInfo(context.Background(), testMint)
	assert.Error(t, err)
}

func TestDASMetadataProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getAsset", req.Method)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"content":{"json_uri":"https://example.com/meta.json","metadata":{"name":"Chain Name","symbol":"CHN","description":"desc"},"links":{"image":"https://example.com/img.png"}},"creators":[{"address":"CreatorAddr"}]}}`))
	}))
	defer srv.Close()

	provider := NewDASMetadataProvider(srv.URL, srv.Client())
	meta, err := provider.ChainMetadata(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, "Chain Name", meta.Name)
	assert.Equal(t, "CHN", meta.Symbol)
	assert.Equal(t, "https://example.com/img.png", meta.ImageURL)
	assert.Equal(t, "https://example.com/meta.json", meta.MetadataURI)
	assert.Equal(t, "CreatorAddr", meta.Creator)
}

func TestDexScreenerProviderPicksDeepestPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/tokens/"+testMint, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[
			{"baseToken":{"name":"Shallow","symbol":"SHL"},"priceUsd":"0.001","liquidity":{"usd":500},"fdv":1000,"volume":{"h24":100}},
			{"baseToken":{"name":"Deep","symbol":"DEP"},"priceUsd":"0.002","liquidity":{"usd":90000},"fdv":250000,"volume":{"h24":42000},
			 "info":{"imageUrl":"https://example.com/d.png","websites":[{"url":"https://deep.example"}],"socials":[{"type":"twitter","url":"https://x.com/deep"}]}}
		]}`))
	}))
	defer srv.Close()

	provider := NewDexScreenerProvider(srv.URL, srv.Client())
	data, err := provider.MarketData(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, "Deep", data.Name)
	assert.InDelta(t, 0.002, data.PriceUSD, 1e-9)
	assert.InDelta(t, 90000, data.LiquidityUSD, 0.001)
	assert.InDelta(t, 250000, data.MarketCapUSD, 0.001)
	assert.InDelta(t, 42000, data.Volume24h, 0.001)
	assert.Equal(t, "https://deep.example", data.Website)
	assert.Equal(t, "https://x.com/deep", data.Twitter)
}

func TestDexScreenerProviderNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pairs":[]}`))
	}))
	defer srv.Close()

	provider := NewDexScreenerProvider(srv.URL, srv.Client())
	_, err := provider.MarketData(context.Background(), testMint)
	assert.Error(t, err)
}
