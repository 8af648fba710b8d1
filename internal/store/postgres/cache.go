package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/ideacritic/internal/retrieval"
)

// CacheStore persists market search results in the market_cache table.
//
// Obtain one via [Store.Cache].
type CacheStore struct {
	pool *pgxpool.Pool
}

// Lookup implements [retrieval.Store].
func (s *CacheStore) Lookup(ctx context.Context, query string) (retrieval.Entry, error) {
	const q = `SELECT query, results, fetched_at FROM market_cache WHERE query = $1`

	var e retrieval.Entry
	err := s.pool.QueryRow(ctx, q, query).Scan(&e.Query, &e.Results, &e.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return retrieval.Entry{}, retrieval.ErrNotFound
	}
	if err != nil {
		return retrieval.Entry{}, fmt.Errorf("market cache: lookup: %w", err)
	}
	e.FetchedAt = e.FetchedAt.UTC()
	return e, nil
}

// Put implements [retrieval.Store]. An existing row for the same query is
// left untouched.
func (s *CacheStore) Put(ctx context.Context, e retrieval.Entry) error {
	const q = `
		INSERT INTO market_cache (query, results, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (query) DO NOTHING`

	if _, err := s.pool.Exec(ctx, q, e.Query, e.Results, e.FetchedAt); err != nil {
		return fmt.Errorf("market cache: put: %w", err)
	}
	return nil
}
