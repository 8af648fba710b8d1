package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/MrWong99/ideacritic/internal/retrieval"
)

// CacheStore persists market search results in the market_cache collection.
type CacheStore struct {
	coll *mongo.Collection
}

// Lookup implements [retrieval.Store].
func (s *CacheStore) Lookup(ctx context.Context, query string) (retrieval.Entry, error) {
	var e retrieval.Entry
	err := s.coll.FindOne(ctx, bson.M{"query": query}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return retrieval.Entry{}, retrieval.ErrNotFound
	}
	if err != nil {
		return retrieval.Entry{}, fmt.Errorf("market cache: lookup: %w", err)
	}
	e.FetchedAt = e.FetchedAt.UTC()
	return e, nil
}

// Put implements [retrieval.Store]. The unique index on query keeps the
// first entry; duplicates are ignored.
func (s *CacheStore) Put(ctx context.Context, e retrieval.Entry) error {
	_, err := s.coll.InsertOne(ctx, e)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("market cache: put: %w", err)
	}
	return nil
}
