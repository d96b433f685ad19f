// Package cache maintains the read-optimized token rows and the
// score-ranked per-state indexes in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// ErrNotFound is returned when a mint has no cached row.
var ErrNotFound = errors.New("cache: not found")

// Key namespaces shared with the read API.
const (
	rowKeyPrefix   = "token:"
	indexKeyPrefix = "tokens:"
)

// DefaultRowTTL bounds how long a cached row can outlive its last refresh.
const DefaultRowTTL = 10 * time.Minute

// Row is the projection of a token served to feed queries.
type Row struct {
	Mint                 string            `json:"mint"`
	State                domain.TokenState `json:"state"`
	StateChangedAt       int64             `json:"stateChangedAt"`
	FirstSeenAt          int64             `json:"firstSeenAt"`
	LastTradeAt          int64             `json:"lastTradeAt"`
	BondingCurveProgress float64           `json:"bondingCurveProgress"`
	PoolAddress          string            `json:"poolAddress,omitempty"`
	PoolType             string            `json:"poolType,omitempty"`
	LiquidityUSD         float64           `json:"liquidityUsd"`
	MarketCapUSD         float64           `json:"marketCapUsd"`
	PriceUSD             float64           `json:"priceUsd"`
	Volume24h            float64           `json:"volume24h"`
	HolderCount          int               `json:"holderCount"`
	TxCount24h           int               `json:"txCount24h"`
	HotScore             int               `json:"hotScore"`
	WatcherCount         int               `json:"watcherCount"`
	FreezeRevoked        bool              `json:"freezeRevoked"`
	MintRenounced        bool              `json:"mintRenounced"`
	CreatorVerified      bool              `json:"creatorVerified"`
	Symbol               string            `json:"symbol,omitempty"`
	Name                 string            `json:"name,omitempty"`
	ImageURL             string            `json:"imageUrl,omitempty"`
	Description          string            `json:"description,omitempty"`
	Website              string            `json:"website,omitempty"`
	Twitter              string            `json:"twitter,omitempty"`
	Telegram             string            `json:"telegram,omitempty"`
}

// RowFromToken projects the externally relevant fields of a token.
func RowFromToken(tok *domain.Token) Row {
	return Row{
		Mint:                 tok.Mint,
		State:                tok.State,
		StateChangedAt:       tok.StateChangedAt,
		FirstSeenAt:          tok.FirstSeenAt,
		LastTradeAt:          tok.LastTradeAt,
		BondingCurveProgress: tok.BondingCurveProgress,
		PoolAddress:          tok.PoolAddress,
		PoolType:             tok.PoolType,
		LiquidityUSD:         tok.LiquidityUSD,
		MarketCapUSD:         tok.MarketCapUSD,
		PriceUSD:             tok.PriceUSD,
		Volume24h:            tok.Volume24h,
		HolderCount:          tok.HolderCount,
		TxCount24h:           tok.TxCount24h,
		HotScore:             tok.HotScore,
		WatcherCount:         tok.WatcherCount,
		FreezeRevoked:        tok.FreezeRevoked,
		MintRenounced:        tok.MintRenounced,
		CreatorVerified:      tok.CreatorVerified,
		Symbol:               tok.Symbol,
		Name:                 tok.Name,
		ImageURL:             tok.ImageURL,
		Description:          tok.Description,
		Website:              tok.Website,
		Twitter:              tok.Twitter,
		Telegram:             tok.Telegram,
	}
}

// Manager is the token cache manager.
type Manager struct {
	client *redis.Client
	rowTTL time.Duration
}

// NewManager creates a cache manager on an existing Redis client.
func NewManager(client *redis.Client, rowTTL time.Duration) *Manager {
	if rowTTL <= 0 {
		rowTTL = DefaultRowTTL
	}
	return &Manager{client: client, rowTTL: rowTTL}
}

// CacheToken writes the row for a token and places it in its state index,
// removing it from every other state index. Pipelined for round-trip
// efficiency; not transactional across keys.
func (m *Manager) CacheToken(ctx context.Context, tok *domain.Token) error {
	row := RowFromToken(tok)
	payload, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal cache row for %s: %w", tok.Mint, err)
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, rowKeyPrefix+tok.Mint, payload, m.rowTTL)
	for _, state := range domain.AllStates {
		if state == tok.State {
			pipe.ZAdd(ctx, indexKeyPrefix+string(state), redis.Z{
				Score:  float64(tok.HotScore),
				Member: tok.Mint,
			})
		} else {
			pipe.ZRem(ctx, indexKeyPrefix+string(state), tok.Mint)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache token %s: %w", tok.Mint, err)
	}
	return nil
}

// Get retrieves a cached row. Returns ErrNotFound on a miss; callers fall
// back to the durable store.
func (m *Manager) Get(ctx context.Context, mint string) (*Row, error) {
	payload, err := m.client.Get(ctx, rowKeyPrefix+mint).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cached token %s: %w", mint, err)
	}

	var row Row
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, fmt.Errorf("decode cached token %s: %w", mint, err)
	}
	return &row, nil
}

// Invalidate removes the cached row for a mint. Callers are responsible
// for re-populating, typically immediately after the mutation that
// invalidated it.
func (m *Manager) Invalidate(ctx context.Context, mint string) error {
	if err := m.client.Del(ctx, rowKeyPrefix+mint).Err(); err != nil {
		return fmt.Errorf("invalidate cached token %s: %w", mint, err)
	}
	return nil
}

// Remove drops a mint from the row cache and every state index. Used by
// cleanup when a token leaves the feed entirely.
func (m *Manager) Remove(ctx context.Context, mint string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, rowKeyPrefix+mint)
	for _, state := range domain.AllStates {
		pipe.ZRem(ctx, indexKeyPrefix+string(state), mint)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove cached token %s: %w", mint, err)
	}
	return nil
}

// TopByState returns up to limit mints in a state, highest score first.
// Feed queries use this to avoid full scans.
func (m *Manager) TopByState(ctx context.Context, state domain.TokenState, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	mints, err := m.client.ZRevRange(ctx, indexKeyPrefix+string(state), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("range state index %s: %w", state, err)
	}
	return mints, nil
}

// UpdateScore re-ranks a mint inside its state index without rewriting
// the row.
func (m *Manager) UpdateScore(ctx context.Context, mint string, state domain.TokenState, score int) error {
	err := m.client.ZAdd(ctx, indexKeyPrefix+string(state), redis.Z{
		Score:  float64(score),
		Member: mint,
	}).Err()
	if err != nil {
		return fmt.Errorf("update score for %s: %w", mint, err)
	}
	return nil
}
