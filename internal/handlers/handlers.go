// Package handlers applies normalized feed events to the token records:
// validate, locate or create, mutate, stage the write, refresh the
// cache, then kick off enrichment without blocking the event path.
package handlers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/Shillz96/solsim-sub011/internal/buffer"
	"github.com/Shillz96/solsim-sub011/internal/cache"
	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/observability"
	"github.com/Shillz96/solsim-sub011/internal/state"
	"github.com/Shillz96/solsim-sub011/internal/storage"
	"github.com/Shillz96/solsim-sub011/internal/txcount"
	"github.com/Shillz96/solsim-sub011/internal/validate"
)

// Quote-asset mints a pool pairs a tracked token against.
var quoteMints = map[string]struct{}{
	"So11111111111111111111111111111111111111112":  {}, // wSOL
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": {}, // USDC
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": {}, // USDT
}

// Enricher kicks off health and metadata enrichment for one mint.
type Enricher interface {
	Enrich(ctx context.Context, mint string) error
}

// Handlers owns the event-path collaborators.
type Handlers struct {
	store     storage.TokenStore
	buffer    *buffer.Manager
	cache     *cache.Manager
	state     *state.Manager
	txCounter *txcount.Counter
	enricher  Enricher
	logger    *log.Logger
	metrics   *observability.Metrics
	now       func() int64

	enrichWG sync.WaitGroup
}

// Options contains configuration for creating Handlers.
type Options struct {
	Store     storage.TokenStore
	Buffer    *buffer.Manager
	Cache     *cache.Manager
	State     *state.Manager
	TxCounter *txcount.Counter
	Enricher  Enricher
	Logger    *log.Logger
	Metrics   *observability.Metrics

	// Now overrides the clock, for tests.
	Now func() int64
}

// New creates the event handlers.
func New(opts Options) *Handlers {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Handlers{
		store:     opts.Store,
		buffer:    opts.Buffer,
		cache:     opts.Cache,
		state:     opts.State,
		txCounter: opts.TxCounter,
		enricher:  opts.Enricher,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Wait blocks until in-flight enrichment goroutines finish. Called
// during shutdown.
func (h *Handlers) Wait() {
	h.enrichWG.Wait()
}

// HandleNewToken records a newly created token in the launching state.
func (h *Handlers) HandleNewToken(ctx context.Context, ev *domain.NewTokenEvent) error {
	defer h.observe("new_token", time.Now())

	if !validate.IsValidMint(ev.Mint) {
		h.drop("new_token", ev.Mint, "invalid mint")
		return nil
	}
	ts := h.eventTime(ev.Timestamp)

	tok, created, err := h.locateOrCreate(ctx, ev.Mint, domain.StateLaunching, ts)
	if err != nil {
		return h.fail("new_token", err)
	}

	fields := map[string]string{
		storage.FieldLastUpdatedAt: storage.Int(ts),
	}
	if created {
		fields[storage.FieldFirstSeenAt] = storage.Int(ts)
		fields[storage.FieldState] = string(domain.StateLaunching)
	}
	setIfEmpty(fields, storage.FieldName, tok.Name, ev.Name)
	setIfEmpty(fields, storage.FieldSymbol, tok.Symbol, ev.Symbol)
	setIfEmpty(fields, storage.FieldMetadataURI, tok.MetadataURI, ev.URI)
	setIfEmpty(fields, storage.FieldCreator, tok.Creator, ev.Creator)

	curve := ev.BondingCurve
	if curve == "" && tok.BondingCurve == "" {
		curve = validate.DeriveBondingCurve(ev.Mint)
	}
	setIfEmpty(fields, storage.FieldBondingCurve, tok.BondingCurve, curve)

	return h.commit(ctx, "new_token", tok, fields, created)
}

// HandleSwap records a trade: trade recency, transaction count, curve
// progress, and any lifecycle transition the new snapshot implies.
func (h *Handlers) HandleSwap(ctx context.Context, ev *domain.SwapEvent) error {
	defer h.observe("swap", time.Now())

	if !validate.IsValidMint(ev.Mint) {
		h.drop("swap", ev.Mint, "invalid mint")
		return nil
	}
	ts := h.eventTime(ev.Timestamp)

	tok, created, err := h.locateOrCreate(ctx, ev.Mint, domain.StateLaunching, ts)
	if err != nil {
		return h.fail("swap", err)
	}

	if h.txCounter != nil && ev.TxSignature != "" {
		h.txCounter.Add(ev.Mint, ev.TxSignature)
	}

	fields := map[string]string{
		storage.FieldLastTradeAt:   storage.Int(ts),
		storage.FieldLastUpdatedAt: storage.Int(ts),
	}
	if created {
		fields[storage.FieldFirstSeenAt] = storage.Int(ts)
	}
	if ev.BondingCurveProgress >= 0 {
		fields[storage.FieldBondingCurveProgress] = storage.Float(ev.BondingCurveProgress)
	}
	if h.txCounter != nil {
		fields[storage.FieldTxCount24h] = storage.Int(int64(h.txCounter.Count(ev.Mint)))
	}

	if err := storage.ApplyFields(tok, fields); err != nil {
		return h.fail("swap", err)
	}

	transitioned, err := h.reclassify(ctx, tok, created, fields)
	if err != nil {
		return h.fail("swap", err)
	}

	return h.commit(ctx, "swap", tok, fields, created || transitioned)
}

// HandleMigration marks a token as graduated to an external pool.
func (h *Handlers) HandleMigration(ctx context.Context, ev *domain.MigrationEvent) error {
	defer h.observe("migration", time.Now())

	if !validate.IsValidMint(ev.Mint) {
		h.drop("migration", ev.Mint, "invalid mint")
		return nil
	}
	ts := h.eventTime(ev.Timestamp)

	return h.recordGraduation(ctx, "migration", ev.Mint, ev.PoolAddress, ev.PoolType, ts)
}

// HandleNewPool records on-chain liquidity for a tracked mint. The pool
// reports two sides; the tracked asset is whichever side is not a known
// quote mint. Liquidity alone is sufficient evidence of the bonded
// state, so an unseen mint is created bonded directly.
func (h *Handlers) HandleNewPool(ctx context.Context, ev *domain.NewPoolEvent) error {
	defer h.observe("new_pool", time.Now())

	mint, ok := trackedPoolMint(ev.BaseMint, ev.QuoteMint)
	if !ok {
		h.drop("new_pool", ev.BaseMint, "no tracked side")
		return nil
	}
	if !validate.IsValidMint(mint) {
		h.drop("new_pool", mint, "invalid mint")
		return nil
	}
	ts := h.eventTime(ev.Timestamp)

	return h.recordGraduation(ctx, "new_pool", mint, ev.PoolAddress, ev.PoolType, ts)
}

// recordGraduation is the shared bonded-transition path for migration
// and new-pool events.
func (h *Handlers) recordGraduation(ctx context.Context, event, mint, poolAddress, poolType string, ts int64) error {
	tok, created, err := h.locateOrCreate(ctx, mint, domain.StateBonded, ts)
	if err != nil {
		return h.fail(event, err)
	}

	fields := map[string]string{
		storage.FieldLastUpdatedAt:        storage.Int(ts),
		storage.FieldBondingCurveProgress: storage.Float(100),
	}
	if created {
		fields[storage.FieldFirstSeenAt] = storage.Int(ts)
		fields[storage.FieldState] = string(domain.StateBonded)
	}
	if poolAddress != "" {
		fields[storage.FieldPoolAddress] = poolAddress
		fields[storage.FieldPoolCreatedAt] = storage.Int(ts)
	}
	if poolType != "" {
		fields[storage.FieldPoolType] = poolType
	}

	if !created && tok.State != domain.StateBonded {
		if err := h.state.UpdateState(ctx, mint, domain.StateBonded, tok.State); err != nil {
			return h.fail(event, err)
		}
		tok.PreviousState = tok.State
		tok.State = domain.StateBonded
		tok.StateChangedAt = ts
	}
	return h.commit(ctx, event, tok, fields, true)
}

// locateOrCreate fetches the durable record, or starts a fresh one in
// initState when the mint is unknown. created reports which path ran.
func (h *Handlers) locateOrCreate(ctx context.Context, mint string, initState domain.TokenState, ts int64) (*domain.Token, bool, error) {
	tok, err := h.store.Get(ctx, mint)
	if err == nil {
		return tok, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	return &domain.Token{
		Mint:        mint,
		State:       initState,
		FirstSeenAt: ts,
	}, true, nil
}

// reclassify evaluates the post-mutation snapshot. A trade is evidence
// of life, so only promotions apply here; demotions to dead wait for
// the cleanup pass, which sees the enriched volume figures. Transitions
// on a durable record go through the state manager; a record still
// pending its first flush carries the new state in the staged fields.
func (h *Handlers) reclassify(ctx context.Context, tok *domain.Token, created bool, fields map[string]string) (bool, error) {
	next := h.state.ClassifyToken(tok)
	if next == tok.State || next == domain.StateDead {
		return false, nil
	}

	if created {
		fields[storage.FieldState] = string(next)
	} else {
		if err := h.state.UpdateState(ctx, tok.Mint, next, tok.State); err != nil {
			return false, err
		}
	}
	tok.PreviousState = tok.State
	tok.State = next
	tok.StateChangedAt = h.now()
	return true, nil
}

// commit stages the fields, refreshes the cached row, and kicks off
// enrichment when the record is new or changed state.
func (h *Handlers) commit(ctx context.Context, event string, tok *domain.Token, fields map[string]string, enrichWorthy bool) error {
	if err := h.buffer.Buffer(ctx, tok.Mint, fields); err != nil {
		return h.fail(event, err)
	}
	if err := storage.ApplyFields(tok, fields); err != nil {
		return h.fail(event, err)
	}

	if h.cache != nil {
		if err := h.cache.CacheToken(ctx, tok); err != nil {
			h.logger.Printf("refresh cache for %s: %v", tok.Mint, err)
		}
	}

	if enrichWorthy && h.enricher != nil {
		mint := tok.Mint
		h.enrichWG.Add(1)
		go func() {
			defer h.enrichWG.Done()
			if err := h.enricher.Enrich(context.WithoutCancel(ctx), mint); err != nil {
				h.logger.Printf("enrich %s: %v", mint, err)
			}
		}()
	}

	if h.metrics != nil {
		h.metrics.EventsHandled.WithLabelValues(event).Inc()
	}
	return nil
}

func (h *Handlers) eventTime(ts int64) int64 {
	if validate.IsSaneTimestamp(ts, h.now()) {
		return ts
	}
	return h.now()
}

func (h *Handlers) drop(event, mint, reason string) {
	h.logger.Printf("drop %s for %q: %s", event, mint, reason)
	if h.metrics != nil {
		h.metrics.EventsDropped.WithLabelValues(reason).Inc()
	}
}

func (h *Handlers) fail(event string, err error) error {
	if h.metrics != nil {
		h.metrics.HandlerErrors.WithLabelValues(event).Inc()
	}
	return err
}

func (h *Handlers) observe(event string, start time.Time) {
	if h.metrics != nil {
		h.metrics.HandlerLatency.WithLabelValues(event).Observe(time.Since(start).Seconds())
	}
}

func setIfEmpty(fields map[string]string, name, current, value string) {
	if current == "" && value != "" {
		fields[name] = value
	}
}

// trackedPoolMint picks the non-quote side of a pool pair. Both sides
// quote, or neither, is ambiguous and dropped.
func trackedPoolMint(baseMint, quoteMint string) (string, bool) {
	_, baseIsQuote := quoteMints[baseMint]
	_, quoteIsQuote := quoteMints[quoteMint]

	switch {
	case baseIsQuote && !quoteIsQuote:
		return quoteMint, true
	case quoteIsQuote && !baseIsQuote:
		return baseMint, true
	}
	return "", false
}
