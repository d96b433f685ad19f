package storage

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Shillz96/solsim-sub011/internal/domain"
)

// Staged field names. Handlers write them into the Redis staging hash,
// the buffer sync reads them back, and both store implementations apply
// them to the durable record. Names match the tokens table columns.
const (
	FieldState                = "state"
	FieldPreviousState        = "previous_state"
	FieldStateChangedAt       = "state_changed_at"
	FieldFirstSeenAt          = "first_seen_at"
	FieldLastTradeAt          = "last_trade_at"
	FieldLastUpdatedAt        = "last_updated_at"
	FieldBondingCurveProgress = "bonding_curve_progress"
	FieldBondingCurve         = "bonding_curve"
	FieldPoolAddress          = "pool_address"
	FieldPoolType             = "pool_type"
	FieldPoolCreatedAt        = "pool_created_at"
	FieldLiquidityUSD         = "liquidity_usd"
	FieldMarketCapUSD         = "market_cap_usd"
	FieldPriceUSD             = "price_usd"
	FieldVolume24h            = "volume_24h"
	FieldHolderCount          = "holder_count"
	FieldTxCount24h           = "tx_count_24h"
	FieldHotScore             = "hot_score"
	FieldWatcherCount         = "watcher_count"
	FieldFreezeRevoked        = "freeze_revoked"
	FieldMintRenounced        = "mint_renounced"
	FieldCreatorVerified      = "creator_verified"
	FieldSymbol               = "symbol"
	FieldName                 = "name"
	FieldImageURL             = "image_url"
	FieldMetadataURI          = "metadata_uri"
	FieldDescription          = "description"
	FieldWebsite              = "website"
	FieldTwitter              = "twitter"
	FieldTelegram             = "telegram"
	FieldCreator              = "creator"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindState
)

// fieldKinds is the staged field whitelist. Unknown names are rejected
// before any SQL is built.
var fieldKinds = map[string]fieldKind{
	FieldState:                kindState,
	FieldPreviousState:        kindState,
	FieldStateChangedAt:       kindInt,
	FieldFirstSeenAt:          kindInt,
	FieldLastTradeAt:          kindInt,
	FieldLastUpdatedAt:        kindInt,
	FieldBondingCurveProgress: kindFloat,
	FieldBondingCurve:         kindString,
	FieldPoolAddress:          kindString,
	FieldPoolType:             kindString,
	FieldPoolCreatedAt:        kindInt,
	FieldLiquidityUSD:         kindFloat,
	FieldMarketCapUSD:         kindFloat,
	FieldPriceUSD:             kindFloat,
	FieldVolume24h:            kindFloat,
	FieldHolderCount:          kindInt,
	FieldTxCount24h:           kindInt,
	FieldHotScore:             kindInt,
	FieldWatcherCount:         kindInt,
	FieldFreezeRevoked:        kindBool,
	FieldMintRenounced:        kindBool,
	FieldCreatorVerified:      kindBool,
	FieldSymbol:               kindString,
	FieldName:                 kindString,
	FieldImageURL:             kindString,
	FieldMetadataURI:          kindString,
	FieldDescription:          kindString,
	FieldWebsite:              kindString,
	FieldTwitter:              kindString,
	FieldTelegram:             kindString,
	FieldCreator:              kindString,
}

// KnownField reports whether name belongs to the staged field vocabulary.
func KnownField(name string) bool {
	_, ok := fieldKinds[name]
	return ok
}

// ParseFieldValue converts a staged string value into its typed form.
// Returns ErrInvalidInput for unknown names or unparseable values.
func ParseFieldValue(name, value string) (any, error) {
	kind, ok := fieldKinds[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
	}

	switch kind {
	case kindString:
		return value, nil
	case kindInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		return n, nil
	case kindFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		return f, nil
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidInput, name, err)
		}
		return b, nil
	case kindState:
		s := domain.TokenState(value)
		if !s.Valid() {
			return nil, fmt.Errorf("%w: field %q: unknown state %q", ErrInvalidInput, name, value)
		}
		return string(s), nil
	}
	return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidInput, name)
}

// SortedFieldNames returns the field names of a staged map in lexical
// order, so generated SQL is deterministic.
func SortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyFields applies staged string fields to a token in place.
// Used by the memory store and by cache projection.
func ApplyFields(tok *domain.Token, fields map[string]string) error {
	for _, name := range SortedFieldNames(fields) {
		v, err := ParseFieldValue(name, fields[name])
		if err != nil {
			return err
		}

		switch name {
		case FieldState:
			tok.State = domain.TokenState(v.(string))
		case FieldPreviousState:
			tok.PreviousState = domain.TokenState(v.(string))
		case FieldStateChangedAt:
			tok.StateChangedAt = v.(int64)
		case FieldFirstSeenAt:
			tok.FirstSeenAt = v.(int64)
		case FieldLastTradeAt:
			tok.LastTradeAt = v.(int64)
		case FieldLastUpdatedAt:
			tok.LastUpdatedAt = v.(int64)
		case FieldBondingCurveProgress:
			tok.BondingCurveProgress = v.(float64)
		case FieldBondingCurve:
			tok.BondingCurve = v.(string)
		case FieldPoolAddress:
			tok.PoolAddress = v.(string)
		case FieldPoolType:
			tok.PoolType = v.(string)
		case FieldPoolCreatedAt:
			tok.PoolCreatedAt = v.(int64)
		case FieldLiquidityUSD:
			tok.LiquidityUSD = v.(float64)
		case FieldMarketCapUSD:
			tok.MarketCapUSD = v.(float64)
		case FieldPriceUSD:
			tok.PriceUSD = v.(float64)
		case FieldVolume24h:
			tok.Volume24h = v.(float64)
		case FieldHolderCount:
			tok.HolderCount = int(v.(int64))
		case FieldTxCount24h:
			tok.TxCount24h = int(v.(int64))
		case FieldHotScore:
			tok.HotScore = int(v.(int64))
		case FieldWatcherCount:
			tok.WatcherCount = int(v.(int64))
		case FieldFreezeRevoked:
			tok.FreezeRevoked = v.(bool)
		case FieldMintRenounced:
			tok.MintRenounced = v.(bool)
		case FieldCreatorVerified:
			tok.CreatorVerified = v.(bool)
		case FieldSymbol:
			tok.Symbol = v.(string)
		case FieldName:
			tok.Name = v.(string)
		case FieldImageURL:
			tok.ImageURL = v.(string)
		case FieldMetadataURI:
			tok.MetadataURI = v.(string)
		case FieldDescription:
			tok.Description = v.(string)
		case FieldWebsite:
			tok.Website = v.(string)
		case FieldTwitter:
			tok.Twitter = v.(string)
		case FieldTelegram:
			tok.Telegram = v.(string)
		case FieldCreator:
			tok.Creator = v.(string)
		}
	}
	return nil
}

// Int, Float and Bool format typed values for the staging hash.
func Int(n int64) string     { return strconv.FormatInt(n, 10) }
func Float(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
func Bool(b bool) string     { return strconv.FormatBool(b) }
