package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// ErrUnrecognized is returned for well-formed JSON whose shape matches no
// known message kind. The caller drops the message; guessing at shapes is
// how bad rows end up in the store.
var ErrUnrecognized = errors.New("unrecognized message shape")

// MessageKind tags the normalized form of an upstream message.
type MessageKind int

const (
	// KindInfo covers subscription acks and other feed chatter.
	KindInfo MessageKind = iota
	KindNewToken
	KindMigration
	KindSwap
	KindNewPool
)

// Message is the tagged union a raw feed payload decodes into. Exactly
// one of the event pointers is set for event kinds.
type Message struct {
	Kind      MessageKind
	NewToken  *domain.NewTokenEvent
	Migration *domain.MigrationEvent
	Swap      *domain.SwapEvent
	NewPool   *domain.NewPoolEvent
}

// envelope covers every shape the feed is known to produce. The same
// logical field can arrive under several names, or nested one level down
// under data/token; normalization happens here and nowhere else.
type envelope struct {
	Type    string `json:"type"`
	TxType  string `json:"txType"`
	Method  string `json:"method"`
	Message string `json:"message"`

	Mint  string    `json:"mint"`
	Data  *envelope `json:"data"`
	Token *envelope `json:"token"`

	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	URI             string `json:"uri"`
	Creator         string `json:"creator"`
	TraderPublicKey string `json:"traderPublicKey"`
	BondingCurveKey string `json:"bondingCurveKey"`
	Signature       string `json:"signature"`

	SolAmount             float64  `json:"solAmount"`
	TokenAmount           float64  `json:"tokenAmount"`
	MarketCapSol          float64  `json:"marketCapSol"`
	VSolInBondingCurve    float64  `json:"vSolInBondingCurve"`
	VTokensInBondingCurve float64  `json:"vTokensInBondingCurve"`
	BondingCurveProgress  *float64 `json:"bondingCurveProgress"`

	Pool        string `json:"pool"`
	PoolAddress string `json:"poolAddress"`
	PoolType    string `json:"poolType"`
	Status      string `json:"status"`

	BaseMint  string `json:"baseMint"`
	QuoteMint string `json:"quoteMint"`
	MintA     string `json:"mintA"`
	MintB     string `json:"mintB"`

	Timestamp int64 `json:"timestamp"`
}

// mint returns the mint wherever the feed put it.
func (e *envelope) mint() string {
	if e.Mint != "" {
		return e.Mint
	}
	if e.Data != nil && e.Data.Mint != "" {
		return e.Data.Mint
	}
	if e.Token != nil && e.Token.Mint != "" {
		return e.Token.Mint
	}
	return ""
}

// field returns the first non-empty value among an envelope and its
// nested payloads.
func (e *envelope) field(get func(*envelope) string) string {
	if v := get(e); v != "" {
		return v
	}
	if e.Data != nil {
		if v := get(e.Data); v != "" {
			return v
		}
	}
	if e.Token != nil {
		if v := get(e.Token); v != "" {
			return v
		}
	}
	return ""
}

// DecodeMessage normalizes a raw feed payload into a tagged Message.
// nowMs stamps events the feed sends without a timestamp.
func DecodeMessage(raw []byte, nowMs int64) (*Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode feed message: %w", err)
	}
	return normalize(&env, nowMs)
}

func normalize(env *envelope, nowMs int64) (*Message, error) {
	ts := env.Timestamp
	if ts <= 0 && env.Data != nil {
		ts = env.Data.Timestamp
	}
	if ts <= 0 {
		ts = nowMs
	}

	switch kindOf(env) {
	case KindInfo:
		return &Message{Kind: KindInfo}, nil

	case KindNewToken:
		mint := env.mint()
		if mint == "" {
			return nil, fmt.Errorf("%w: newToken without mint", ErrUnrecognized)
		}
		return &Message{Kind: KindNewToken, NewToken: &domain.NewTokenEvent{
			Mint:         mint,
			Name:         env.field(func(e *envelope) string { return e.Name }),
			Symbol:       env.field(func(e *envelope) string { return e.Symbol }),
			URI:          env.field(func(e *envelope) string { return e.URI }),
			Creator:      firstNonEmpty(env.field(func(e *envelope) string { return e.Creator }), env.TraderPublicKey),
			BondingCurve: env.field(func(e *envelope) string { return e.BondingCurveKey }),
			MarketCapSol: env.MarketCapSol,
			Timestamp:    ts,
		}}, nil

	case KindMigration:
		mint := env.mint()
		if mint == "" {
			return nil, fmt.Errorf("%w: migration without mint", ErrUnrecognized)
		}
		return &Message{Kind: KindMigration, Migration: &domain.MigrationEvent{
			Mint:        mint,
			PoolAddress: firstNonEmpty(env.field(func(e *envelope) string { return e.PoolAddress }), env.Pool),
			PoolType:    env.field(func(e *envelope) string { return e.PoolType }),
			Status:      env.field(func(e *envelope) string { return e.Status }),
			Timestamp:   ts,
		}}, nil

	case KindSwap:
		mint := env.mint()
		if mint == "" {
			return nil, fmt.Errorf("%w: swap without mint", ErrUnrecognized)
		}
		progress := -1.0
		if env.BondingCurveProgress != nil {
			progress = *env.BondingCurveProgress
		}
		return &Message{Kind: KindSwap, Swap: &domain.SwapEvent{
			Mint:                 mint,
			TxSignature:          env.field(func(e *envelope) string { return e.Signature }),
			Side:                 strings.ToLower(env.TxType),
			SolAmount:            env.SolAmount,
			TokenAmount:          env.TokenAmount,
			MarketCapSol:         env.MarketCapSol,
			BondingCurveProgress: progress,
			Trader:               env.TraderPublicKey,
			Timestamp:            ts,
		}}, nil

	case KindNewPool:
		base := firstNonEmpty(env.BaseMint, env.MintA)
		quote := firstNonEmpty(env.QuoteMint, env.MintB)
		if base == "" || quote == "" {
			return nil, fmt.Errorf("%w: newPool without both mints", ErrUnrecognized)
		}
		return &Message{Kind: KindNewPool, NewPool: &domain.NewPoolEvent{
			BaseMint:    base,
			QuoteMint:   quote,
			PoolAddress: firstNonEmpty(env.PoolAddress, env.Pool),
			PoolType:    env.PoolType,
			Timestamp:   ts,
		}}, nil
	}

	return nil, ErrUnrecognized
}

// kindOf resolves the message kind from the explicit type tag when
// present, otherwise from the trade txType the feed uses instead.
func kindOf(env *envelope) MessageKind {
	switch env.Type {
	case "newToken":
		return KindNewToken
	case "migration":
		return KindMigration
	case "swap", "trade":
		return KindSwap
	case "newPool":
		return KindNewPool
	}

	switch strings.ToLower(env.TxType) {
	case "create":
		return KindNewToken
	case "buy", "sell":
		return KindSwap
	case "migrate", "migration":
		return KindMigration
	}

	if env.Message != "" || env.Method != "" {
		return KindInfo
	}

	return MessageKind(-1)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
