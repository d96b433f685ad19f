package domain

// Token is the tracked record for a single mint.
// Corresponds to the tokens table in PostgreSQL; the cached row in Redis
// is a projection of the same fields.
type Token struct {
	Mint string // PRIMARY KEY, immutable, validated before first persistence

	State          TokenState // current lifecycle state
	PreviousState  TokenState // state before the last transition (audit)
	StateChangedAt int64      // Unix ms of last state transition
	FirstSeenAt    int64      // Unix ms of first observation
	LastTradeAt    int64      // Unix ms of last observed trade, 0 if never traded
	LastUpdatedAt  int64      // Unix ms of last mutation

	BondingCurveProgress float64 // 0-100
	BondingCurve         string  // bonding curve account, if known
	PoolAddress          string  // set once liquidity exists
	PoolType             string  // raydium | pumpswap | ...
	PoolCreatedAt        int64   // Unix ms, 0 until a pool exists

	// Market snapshot
	LiquidityUSD float64
	MarketCapUSD float64
	PriceUSD     float64
	Volume24h    float64
	HolderCount  int
	TxCount24h   int

	// Ranking
	HotScore     int // derived, recomputed periodically, never hand-edited
	WatcherCount int // externally maintained

	// Security flags
	FreezeRevoked   bool
	MintRenounced   bool
	CreatorVerified bool

	// Descriptive metadata
	Symbol      string
	Name        string
	ImageURL    string
	MetadataURI string
	Description string
	Website     string
	Twitter     string
	Telegram    string
	Creator     string
}

// Snapshot extracts the fields the lifecycle classifier reads.
func (t *Token) Snapshot() StateSnapshot {
	return StateSnapshot{
		BondingCurveProgress: t.BondingCurveProgress,
		Graduated:            t.State == StateBonded || t.PoolAddress != "",
		LastTradeAt:          t.LastTradeAt,
		Volume24h:            t.Volume24h,
		HolderCount:          t.HolderCount,
	}
}

// StateSnapshot is the classifier input: the minimal view of a token
// needed to decide its lifecycle state.
type StateSnapshot struct {
	BondingCurveProgress float64
	Graduated            bool  // explicit graduated flag (pool observed)
	LastTradeAt          int64 // Unix ms, 0 if no trade observed yet
	Volume24h            float64
	HolderCount          int
}
