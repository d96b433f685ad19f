package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// DefaultProviderTimeout bounds every provider HTTP call. The enricher
// itself imposes no deadline; the client layer does.
const DefaultProviderTimeout = 15 * time.Second

// rpcClient is a minimal JSON-RPC 2.0 client for the chain endpoint.
type rpcClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

func newRPCClient(endpoint string, client *http.Client) *rpcClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultProviderTimeout}
	}
	return &rpcClient{endpoint: endpoint, client: client}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *rpcClient) call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// RPCAuthorityProvider reads mint account authorities over JSON-RPC. A
// null freeze or mint authority on the parsed account means the
// corresponding power was revoked.
type RPCAuthorityProvider struct {
	rpc *rpcClient
}

// NewRPCAuthorityProvider creates a provider against a chain RPC
// endpoint. client may be nil for a default with a bounded timeout.
func NewRPCAuthorityProvider(endpoint string, client *http.Client) *RPCAuthorityProvider {
	return &RPCAuthorityProvider{rpc: newRPCClient(endpoint, client)}
}

var _ AuthorityProvider = (*RPCAuthorityProvider)(nil)

type accountInfoResult struct {
	Value *struct {
		Data struct {
			Parsed struct {
				Info struct {
					FreezeAuthority *string `json:"freezeAuthority"`
					MintAuthority   *string `json:"mintAuthority"`
				} `json:"info"`
			} `json:"parsed"`
		} `json:"data"`
	} `json:"value"`
}

// AuthorityInfo implements AuthorityProvider.
func (p *RPCAuthorityProvider) AuthorityInfo(ctx context.Context, mint string) (*AuthorityInfo, error) {
	params := []any{mint, map[string]string{"encoding": "jsonParsed"}}

	var result accountInfoResult
	if err := p.rpc.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, fmt.Errorf("get account info for %s: %w", mint, err)
	}
	if result.Value == nil {
		return nil, fmt.Errorf("mint account %s not found", mint)
	}

	info := result.Value.Data.Parsed.Info
	return &AuthorityInfo{
		FreezeRevoked: info.FreezeAuthority == nil,
		MintRenounced: info.MintAuthority == nil,
	}, nil
}

// DASMetadataProvider resolves canonical token metadata through the DAS
// getAsset method.
type DASMetadataProvider struct {
	rpc *rpcClient
}

// NewDASMetadataProvider creates a provider against a DAS-capable RPC
// endpoint.
func NewDASMetadataProvider(endpoint string, client *http.Client) *DASMetadataProvider {
	return &DASMetadataProvider{rpc: newRPCClient(endpoint, client)}
}

var _ ChainMetadataProvider = (*DASMetadataProvider)(nil)

type getAssetResult struct {
	Content struct {
		JSONURI  string `json:"json_uri"`
		Metadata struct {
			Name        string `json:"name"`
			Symbol      string `json:"symbol"`
			Description string `json:"description"`
		} `json:"metadata"`
		Links struct {
			Image string `json:"image"`
		} `json:"links"`
	} `json:"content"`
	Creators []struct {
		Address string `json:"address"`
	} `json:"creators"`
}

// ChainMetadata implements ChainMetadataProvider.
func (p *DASMetadataProvider) ChainMetadata(ctx context.Context, mint string) (*ChainMetadata, error) {
	params := map[string]string{"id": mint}

	var result getAssetResult
	if err := p.rpc.call(ctx, "getAsset", params, &result); err != nil {
		return nil, fmt.Errorf("get asset %s: %w", mint, err)
	}

	meta := &ChainMetadata{
		Name:        result.Content.Metadata.Name,
		Symbol:      result.Content.Metadata.Symbol,
		Description: result.Content.Metadata.Description,
		ImageURL:    result.Content.Links.Image,
		MetadataURI: result.Content.JSONURI,
	}
	if len(result.Creators) > 0 {
		meta.Creator = result.Creators[0].Address
	}
	return meta, nil
}

// DexScreenerProvider resolves market data from the DexScreener token
// endpoint, using the deepest pool when a mint trades in several.
type DexScreenerProvider struct {
	baseURL string
	client  *http.Client
}

// NewDexScreenerProvider creates a provider. baseURL may be empty for
// the public API; client may be nil for a default with a bounded
// timeout.
func NewDexScreenerProvider(baseURL string, client *http.Client) *DexScreenerProvider {
	if baseURL == "" {
		baseURL = "https://api.dexscreener.com"
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultProviderTimeout}
	}
	return &DexScreenerProvider{baseURL: baseURL, client: client}
}

var _ MarketDataProvider = (*DexScreenerProvider)(nil)

type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	BaseToken struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV    float64 `json:"fdv"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Info struct {
		ImageURL string `json:"imageUrl"`
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

// MarketData implements MarketDataProvider.
func (p *DexScreenerProvider) MarketData(ctx context.Context, mint string) (*MarketData, error) {
	url := p.baseURL + "/latest/dex/tokens/" + mint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch market data for %s: %w", mint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, mint)
	}

	var parsed dexScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode market data for %s: %w", mint, err)
	}
	if len(parsed.Pairs) == 0 {
		return nil, fmt.Errorf("no pairs listed for %s", mint)
	}

	best := parsed.Pairs[0]
	for _, pair := range parsed.Pairs[1:] {
		if pair.Liquidity.USD > best.Liquidity.USD {
			best = pair
		}
	}

	data := &MarketData{
		Name:         best.BaseToken.Name,
		Symbol:       best.BaseToken.Symbol,
		ImageURL:     best.Info.ImageURL,
		LiquidityUSD: best.Liquidity.USD,
		MarketCapUSD: best.FDV,
		Volume24h:    best.Volume.H24,
	}
	if price, err := strconv.ParseFloat(best.PriceUSD, 64); err == nil {
		data.PriceUSD = price
	}
	if len(best.Info.Websites) > 0 {
		data.Website = best.Info.Websites[0].URL
	}
	for _, social := range best.Info.Socials {
		switch social.Type {
		case "twitter":
			data.Twitter = social.URL
		case "telegram":
			data.Telegram = social.URL
		}
	}
	return data, nil
}
