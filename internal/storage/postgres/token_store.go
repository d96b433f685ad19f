package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Shillz96/solsim-sub011/internal/domain"
	"github.com/Shillz96/solsim-sub011/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	mint, state, previous_state, state_changed_at, first_seen_at,
	last_trade_at, last_updated_at, bonding_curve_progress, bonding_curve,
	pool_address, pool_type, pool_created_at, liquidity_usd, market_cap_usd,
	price_usd, volume_24h, holder_count, tx_count_24h, hot_score,
	watcher_count, freeze_revoked, mint_renounced, creator_verified,
	symbol, name, image_url, metadata_uri, description, website, twitter,
	telegram, creator
`

// Upsert creates the row with defaults when absent, otherwise updates only
// the provided fields. Field names are validated against the staged field
// whitelist before any SQL is built.
func (s *TokenStore) Upsert(ctx context.Context, mint string, fields map[string]string) error {
	if mint == "" {
		return storage.ErrInvalidInput
	}

	names := storage.SortedFieldNames(fields)

	cols := []string{"mint"}
	placeholders := []string{"$1"}
	args := []any{mint}
	var updates []string

	for _, name := range names {
		v, err := storage.ParseFieldValue(name, fields[name])
		if err != nil {
			return err
		}
		args = append(args, v)
		cols = append(cols, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", name, name))
	}

	query := fmt.Sprintf(
		"INSERT INTO tokens (%s) VALUES (%s) ON CONFLICT (mint) DO UPDATE SET %s",
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)
	if len(updates) == 0 {
		query = fmt.Sprintf(
			"INSERT INTO tokens (%s) VALUES (%s) ON CONFLICT (mint) DO NOTHING",
			strings.Join(cols, ", "),
			strings.Join(placeholders, ", "),
		)
	}

	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert token %s: %w", mint, err)
	}
	return nil
}

// Get retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) Get(ctx context.Context, mint string) (*domain.Token, error) {
	query := fmt.Sprintf("SELECT %s FROM tokens WHERE mint = $1", tokenColumns)

	row := s.pool.QueryRow(ctx, query, mint)
	tok, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return tok, nil
}

// ListByState retrieves up to limit tokens in a state, hot score
// descending. A non-positive limit means no limit.
func (s *TokenStore) ListByState(ctx context.Context, state domain.TokenState, limit int) ([]*domain.Token, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tokens
		WHERE state = $1
		ORDER BY hot_score DESC, last_updated_at DESC
		LIMIT $2
	`, tokenColumns)

	rows, err := s.pool.Query(ctx, query, string(state), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tokens by state: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// ListForScoring retrieves up to limit non-dead tokens, most recently
// updated first. A non-positive limit means no limit.
func (s *TokenStore) ListForScoring(ctx context.Context, limit int) ([]*domain.Token, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tokens
		WHERE state != $1
		ORDER BY last_updated_at DESC
		LIMIT $2
	`, tokenColumns)

	rows, err := s.pool.Query(ctx, query, string(domain.StateDead), sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list tokens for scoring: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// UpdateState transitions a token's state, stamping the audit fields.
func (s *TokenStore) UpdateState(ctx context.Context, mint string, newState, oldState domain.TokenState, atMs int64) error {
	query := `
		UPDATE tokens
		SET state = $2, previous_state = $3, state_changed_at = $4, last_updated_at = $4
		WHERE mint = $1
	`

	tag, err := s.pool.Exec(ctx, query, mint, string(newState), string(oldState), atMs)
	if err != nil {
		return fmt.Errorf("update token state %s: %w", mint, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteDeadBefore removes dead tokens last updated before cutoffMs.
func (s *TokenStore) DeleteDeadBefore(ctx context.Context, cutoffMs int64) (int64, error) {
	query := `DELETE FROM tokens WHERE state = $1 AND last_updated_at < $2`

	tag, err := s.pool.Exec(ctx, query, string(domain.StateDead), cutoffMs)
	if err != nil {
		return 0, fmt.Errorf("delete dead tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByState returns the number of tokens per lifecycle state.
func (s *TokenStore) CountByState(ctx context.Context) (map[domain.TokenState]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT state, COUNT(*) FROM tokens GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count tokens by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.TokenState]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan state count row: %w", err)
		}
		counts[domain.TokenState(state)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state count rows: %w", err)
	}
	return counts, nil
}

// sqlLimit maps the non-positive "no limit" convention onto LIMIT NULL.
func sqlLimit(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// scanToken scans a single row into a Token.
func scanToken(row pgx.Row) (*domain.Token, error) {
	var t domain.Token
	var state, prevState string

	err := row.Scan(
		&t.Mint,
		&state,
		&prevState,
		&t.StateChangedAt,
		&t.FirstSeenAt,
		&t.LastTradeAt,
		&t.LastUpdatedAt,
		&t.BondingCurveProgress,
		&t.BondingCurve,
		&t.PoolAddress,
		&t.PoolType,
		&t.PoolCreatedAt,
		&t.LiquidityUSD,
		&t.MarketCapUSD,
		&t.PriceUSD,
		&t.Volume24h,
		&t.HolderCount,
		&t.TxCount24h,
		&t.HotScore,
		&t.WatcherCount,
		&t.FreezeRevoked,
		&t.MintRenounced,
		&t.CreatorVerified,
		&t.Symbol,
		&t.Name,
		&t.ImageURL,
		&t.MetadataURI,
		&t.Description,
		&t.Website,
		&t.Twitter,
		&t.Telegram,
		&t.Creator,
	)
	if err != nil {
		return nil, err
	}

	t.State = domain.TokenState(state)
	t.PreviousState = domain.TokenState(prevState)
	return &t, nil
}

// scanTokens scans multiple rows into a slice of Token.
func scanTokens(rows pgx.Rows) ([]*domain.Token, error) {
	var tokens []*domain.Token

	for rows.Next() {
		tok, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		tokens = append(tokens, tok)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}
