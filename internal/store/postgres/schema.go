// Package postgres provides PostgreSQL-backed implementations of the analysis
// archive and the market-search cache.
//
// Both share a single [pgxpool.Pool]:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	id, _ := store.Archive().Insert(ctx, rec)
//	_ = store.Cache().Put(ctx, entry)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlDebates = `
CREATE TABLE IF NOT EXISTS debates (
    id                  UUID         PRIMARY KEY,
    idea_title          TEXT         NOT NULL,
    idea_description    TEXT         NOT NULL DEFAULT '',
    clarifying_answers  JSONB        NOT NULL DEFAULT '{}',
    debate_transcript   TEXT         NOT NULL DEFAULT '',
    final_summary       TEXT         NOT NULL DEFAULT '',
    market_insight      TEXT         NOT NULL DEFAULT '',
    investor_output     TEXT         NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_debates_created_at
    ON debates (created_at DESC);
`

const ddlMarketCache = `
CREATE TABLE IF NOT EXISTS market_cache (
    query       TEXT         PRIMARY KEY,
    results     TEXT         NOT NULL,
    fetched_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates the debates and market_cache tables. It is idempotent and
// safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlDebates, ddlMarketCache} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
