package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/retrieval"
)

var (
	_ archive.Store   = (*ArchiveStore)(nil)
	_ retrieval.Store = (*CacheStore)(nil)
)

// Store owns the connection pool and exposes the archive and the cache as
// sub-stores.
//
// All operations are safe for concurrent use.
type Store struct {
	pool    *pgxpool.Pool
	archive *ArchiveStore
	cache   *CacheStore
}

// NewStore connects to the database at dsn, verifies the connection and runs
// [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:    pool,
		archive: &ArchiveStore{pool: pool},
		cache:   &CacheStore{pool: pool},
	}, nil
}

// Archive returns the debates table implementation of [archive.Store].
func (s *Store) Archive() *ArchiveStore { return s.archive }

// Cache returns the market_cache table implementation of [retrieval.Store].
func (s *Store) Cache() *CacheStore { return s.cache }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}
