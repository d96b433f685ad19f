// Package enrich merges token health and metadata from independent
// external providers into the durable record and the cache.
package enrich

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Shillz96/solsim-sub011/internal/cache"
	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// AuthorityInfo carries on-chain authority flags and pool liquidity.
type AuthorityInfo struct {
	FreezeRevoked bool
	MintRenounced bool
	LiquidityUSD  float64
	PriceUSD      float64
}

// ChainMetadata is the canonical on-chain token metadata.
type ChainMetadata struct {
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	MetadataURI string
	Creator     string
}

// MarketData is secondary metadata and market enrichment. Its fields
// only fill gaps the other providers left.
type MarketData struct {
	Name         string
	Symbol       string
	Description  string
	ImageURL     string
	PriceUSD     float64
	MarketCapUSD float64
	LiquidityUSD float64
	Volume24h    float64
	HolderCount  int
	Website      string
	Twitter      string
	Telegram     string
}

// AuthorityProvider reports authority revocation and liquidity state.
type AuthorityProvider interface {
	AuthorityInfo(ctx context.Context, mint string) (*AuthorityInfo, error)
}

// ChainMetadataProvider resolves canonical on-chain metadata.
type ChainMetadataProvider interface {
	ChainMetadata(ctx context.Context, mint string) (*ChainMetadata, error)
}

// MarketDataProvider resolves secondary market and metadata fields.
type MarketDataProvider interface {
	MarketData(ctx context.Context, mint string) (*MarketData, error)
}

// Enricher fans out to the providers and merges their results.
type Enricher struct {
	store     storage.TokenStore
	cache     *cache.Manager
	authority AuthorityProvider
	chain     ChainMetadataProvider
	market    MarketDataProvider
	logger    *log.Logger
	metrics   *observability.Metrics
}

// Options contains configuration for creating an Enricher.
type Options struct {
	Store     storage.TokenStore
	Cache     *cache.Manager
	Authority AuthorityProvider
	Chain     ChainMetadataProvider
	Market    MarketDataProvider
	Logger    *log.Logger
	Metrics   *observability.Metrics
}

// NewEnricher creates an enricher. Any provider may be nil and is then
// skipped.
func NewEnricher(opts Options) *Enricher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{
		store:     opts.Store,
		cache:     opts.Cache,
		authority: opts.Authority,
		chain:     opts.Chain,
		market:    opts.Market,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Enrich fans out to every configured provider, waits for all of them
// to settle, merges what succeeded, persists the merged fields and
// refreshes the cache. One provider failing never blocks the others;
// a cycle with zero successful providers leaves the record untouched.
func (e *Enricher) Enrich(ctx context.Context, mint string) error {
	tok, err := e.store.Get(ctx, mint)
	if err != nil {
		return err
	}

	var (
		wg        sync.WaitGroup
		authority *AuthorityInfo
		chain     *ChainMetadata
		market    *MarketData
	)

	if e.authority != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := e.authority.AuthorityInfo(ctx, mint)
			if err != nil {
				e.providerFailed("authority", mint, err)
				return
			}
			authority = info
		}()
	}
	if e.chain != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, err := e.chain.ChainMetadata(ctx, mint)
			if err != nil {
				e.providerFailed("chain_metadata", mint, err)
				return
			}
			chain = meta
		}()
	}
	if e.market != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := e.market.MarketData(ctx, mint)
			if err != nil {
				e.providerFailed("market_data", mint, err)
				return
			}
			market = data
		}()
	}
	wg.Wait()

	fields := mergeFields(tok, authority, chain, market)
	if len(fields) == 0 {
		return nil
	}
	fields[storage.FieldLastUpdatedAt] = storage.Int(time.Now().UnixMilli())

	if err := e.store.Upsert(ctx, mint, fields); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.EnrichmentsTotal.Inc()
	}

	if e.cache != nil {
		if err := storage.ApplyFields(tok, fields); err != nil {
			return err
		}
		if err := e.cache.CacheToken(ctx, tok); err != nil {
			e.logger.Printf("refresh cache after enriching %s: %v", mint, err)
		}
	}
	return nil
}

func (e *Enricher) providerFailed(provider, mint string, err error) {
	e.logger.Printf("%s provider failed for %s: %v", provider, mint, err)
	if e.metrics != nil {
		e.metrics.EnrichmentErrors.WithLabelValues(provider).Inc()
	}
}

// mergeFields builds the staged update from settled provider results.
// On-chain metadata wins for name, symbol, description and image when
// the stored value is empty or a placeholder; market data only fills
// gaps neither the record nor the chain provider satisfied.
func mergeFields(tok *domain.Token, authority *AuthorityInfo, chain *ChainMetadata, market *MarketData) map[string]string {
	fields := make(map[string]string)

	if authority != nil {
		if authority.FreezeRevoked != tok.FreezeRevoked {
			fields[storage.FieldFreezeRevoked] = storage.Bool(authority.FreezeRevoked)
		}
		if authority.MintRenounced != tok.MintRenounced {
			fields[storage.FieldMintRenounced] = storage.Bool(authority.MintRenounced)
		}
		if authority.LiquidityUSD > 0 {
			fields[storage.FieldLiquidityUSD] = storage.Float(authority.LiquidityUSD)
		}
		if authority.PriceUSD > 0 {
			fields[storage.FieldPriceUSD] = storage.Float(authority.PriceUSD)
		}
	}

	name, symbol, desc, image := tok.Name, tok.Symbol, tok.Description, tok.ImageURL
	if chain != nil {
		if isPlaceholder(name) && chain.Name != "" {
			name = chain.Name
			fields[storage.FieldName] = chain.Name
		}
		if isPlaceholder(symbol) && chain.Symbol != "" {
			symbol = chain.Symbol
			fields[storage.FieldSymbol] = chain.Symbol
		}
		if isPlaceholder(desc) && chain.Description != "" {
			desc = chain.Description
			fields[storage.FieldDescription] = chain.Description
		}
		if isPlaceholder(image) && chain.ImageURL != "" {
			image = chain.ImageURL
			fields[storage.FieldImageURL] = chain.ImageURL
		}
		if tok.MetadataURI == "" && chain.MetadataURI != "" {
			fields[storage.FieldMetadataURI] = chain.MetadataURI
		}
		if tok.Creator == "" && chain.Creator != "" {
			fields[storage.FieldCreator] = chain.Creator
		}
	}

	if market != nil {
		if isPlaceholder(name) && market.Name != "" {
			fields[storage.FieldName] = market.Name
		}
		if isPlaceholder(symbol) && market.Symbol != "" {
			fields[storage.FieldSymbol] = market.Symbol
		}
		if isPlaceholder(desc) && market.Description != "" {
			fields[storage.FieldDescription] = market.Description
		}
		if isPlaceholder(image) && market.ImageURL != "" {
			fields[storage.FieldImageURL] = market.ImageURL
		}
		if market.PriceUSD > 0 {
			if _, set := fields[storage.FieldPriceUSD]; !set {
				fields[storage.FieldPriceUSD] = storage.Float(market.PriceUSD)
			}
		}
		if market.LiquidityUSD > 0 {
			if _, set := fields[storage.FieldLiquidityUSD]; !set {
				fields[storage.FieldLiquidityUSD] = storage.Float(market.LiquidityUSD)
			}
		}
		if market.MarketCapUSD > 0 {
			fields[storage.FieldMarketCapUSD] = storage.Float(market.MarketCapUSD)
		}
		if market.Volume24h > 0 {
			fields[storage.FieldVolume24h] = storage.Float(market.Volume24h)
		}
		if market.HolderCount > 0 {
			fields[storage.FieldHolderCount] = storage.Int(int64(market.HolderCount))
		}
		if tok.Website == "" && market.Website != "" {
			fields[storage.FieldWebsite] = market.Website
		}
		if tok.Twitter == "" && market.Twitter != "" {
			fields[storage.FieldTwitter] = market.Twitter
		}
		if tok.Telegram == "" && market.Telegram != "" {
			fields[storage.FieldTelegram] = market.Telegram
		}
	}

	return fields
}

// Placeholder values some feeds emit before real metadata resolves.
var placeholders = map[string]struct{}{
	"":          {},
	"unknown":   {},
	"undefined": {},
	"null":      {},
	"n/a":       {},
	"new token": {},
}

func isPlaceholder(value string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(value))]
	return ok
}
