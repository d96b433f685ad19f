package domain

// NewTokenEvent is a normalized token creation event from the upstream feed.
type NewTokenEvent struct {
	Mint         string
	Name         string // optional
	Symbol       string // optional
	URI          string // optional metadata URI
	Creator      string // optional
	BondingCurve string // optional bonding curve account
	MarketCapSol float64
	Timestamp    int64 // Unix ms, receive time if the feed omits one
}

// MigrationEvent is a normalized bonding-curve graduation event.
type MigrationEvent struct {
	Mint        string
	PoolAddress string // optional
	PoolType    string // optional, e.g. "raydium" or "pumpswap"
	Status      string // "initialized" | "migrated" | feed-specific
	Timestamp   int64  // Unix ms
}

// SwapEvent is a normalized trade event for a tracked mint.
type SwapEvent struct {
	Mint                 string
	TxSignature          string
	Side                 string // "buy" | "sell"
	SolAmount            float64
	TokenAmount          float64
	MarketCapSol         float64
	BondingCurveProgress float64 // 0-100, negative if the feed omits it
	Trader               string
	Timestamp            int64 // Unix ms
}

// NewPoolEvent is a normalized liquidity pool creation event. The two
// sides are reported as observed on chain; one of them is a quote mint.
type NewPoolEvent struct {
	BaseMint    string
	QuoteMint   string
	PoolAddress string
	PoolType    string
	Timestamp   int64 // Unix ms
}
