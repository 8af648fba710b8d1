// Package mongo provides MongoDB-backed implementations of the analysis
// archive and the market-search cache.
//
// Records live in the "debates" collection and cached search results in
// "market_cache", both inside one database (ideacritic_db by default).
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/retrieval"
)

// DefaultDatabase is used when no database name is supplied.
const DefaultDatabase = "ideacritic_db"

const (
	debatesCollection = "debates"
	cacheCollection   = "market_cache"
)

var (
	_ archive.Store   = (*ArchiveStore)(nil)
	_ retrieval.Store = (*CacheStore)(nil)
)

// Store owns the client connection and exposes the archive and the cache as
// sub-stores.
type Store struct {
	client  *mongo.Client
	archive *ArchiveStore
	cache   *CacheStore
}

// NewStore connects to uri, verifies the connection and ensures the indexes
// both collections rely on. An empty database selects [DefaultDatabase].
func NewStore(ctx context.Context, uri, database string) (*Store, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo store: connection string must not be empty")
	}
	if database == "" {
		database = DefaultDatabase
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo store: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo store: ping: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:  client,
		archive: &ArchiveStore{coll: db.Collection(debatesCollection)},
		cache:   &CacheStore{coll: db.Collection(cacheCollection)},
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.archive.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("mongo store: index %s: %w", debatesCollection, err)
	}
	_, err = s.cache.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "query", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo store: index %s: %w", cacheCollection, err)
	}
	return nil
}

// Archive returns the debates collection implementation of [archive.Store].
func (s *Store) Archive() *ArchiveStore { return s.archive }

// Cache returns the market_cache collection implementation of [retrieval.Store].
func (s *Store) Cache() *CacheStore { return s.cache }

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// DropDatabase removes the database backing this store. Used by tests.
func (s *Store) DropDatabase(ctx context.Context) error {
	return s.archive.coll.Database().Drop(ctx)
}
