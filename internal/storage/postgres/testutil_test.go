package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// tokens schema. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema creates the tokens table. Mirrors the embedded migration;
// inlined here to avoid an import cycle with the migrations package.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := `
CREATE TABLE IF NOT EXISTS tokens (
    mint                    TEXT PRIMARY KEY,
    state                   TEXT NOT NULL DEFAULT 'launching'
        CHECK (state IN ('launching', 'about_to_bond', 'bonded', 'active', 'dead')),
    previous_state          TEXT NOT NULL DEFAULT '',
    state_changed_at        BIGINT NOT NULL DEFAULT 0,
    first_seen_at           BIGINT NOT NULL DEFAULT 0,
    last_trade_at           BIGINT NOT NULL DEFAULT 0,
    last_updated_at         BIGINT NOT NULL DEFAULT 0,
    bonding_curve_progress  DOUBLE PRECISION NOT NULL DEFAULT 0,
    bonding_curve           TEXT NOT NULL DEFAULT '',
    pool_address            TEXT NOT NULL DEFAULT '',
    pool_type               TEXT NOT NULL DEFAULT '',
    pool_created_at         BIGINT NOT NULL DEFAULT 0,
    liquidity_usd           DOUBLE PRECISION NOT NULL DEFAULT 0,
    market_cap_usd          DOUBLE PRECISION NOT NULL DEFAULT 0,
    price_usd               DOUBLE PRECISION NOT NULL DEFAULT 0,
    volume_24h              DOUBLE PRECISION NOT NULL DEFAULT 0,
    holder_count            INTEGER NOT NULL DEFAULT 0,
    tx_count_24h            INTEGER NOT NULL DEFAULT 0,
    hot_score               INTEGER NOT NULL DEFAULT 0,
    watcher_count           INTEGER NOT NULL DEFAULT 0,
    freeze_revoked          BOOLEAN NOT NULL DEFAULT FALSE,
    mint_renounced          BOOLEAN NOT NULL DEFAULT FALSE,
    creator_verified        BOOLEAN NOT NULL DEFAULT FALSE,
    symbol                  TEXT NOT NULL DEFAULT '',
    name                    TEXT NOT NULL DEFAULT '',
    image_url               TEXT NOT NULL DEFAULT '',
    metadata_uri            TEXT NOT NULL DEFAULT '',
    description             TEXT NOT NULL DEFAULT '',
    website                 TEXT NOT NULL DEFAULT '',
    twitter                 TEXT NOT NULL DEFAULT '',
    telegram                TEXT NOT NULL DEFAULT '',
    creator                 TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tokens_state_score ON tokens (state, hot_score DESC);
CREATE INDEX IF NOT EXISTS idx_tokens_last_updated ON tokens (last_updated_at);
`

	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err, "failed to apply schema")
}
