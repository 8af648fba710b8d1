package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrWong99/ideacritic/internal/archive"
)

// ArchiveStore persists analysis records in the debates collection.
type ArchiveStore struct {
	coll *mongo.Collection
}

type document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	archive.Record `bson:",inline"`
}

func (d document) record() archive.Record {
	r := d.Record
	r.ID = d.ID.Hex()
	r.CreatedAt = r.CreatedAt.UTC()
	return r
}

// Insert implements [archive.Store]. Ids are ObjectID hex strings, including
// caller-supplied ones.
func (s *ArchiveStore) Insert(ctx context.Context, r archive.Record) (string, error) {
	doc := document{ID: primitive.NewObjectID(), Record: r.Clone()}
	if r.ID != "" {
		oid, err := primitive.ObjectIDFromHex(r.ID)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not an ObjectID", archive.ErrInvalidID, r.ID)
		}
		doc.ID = oid
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.ClarifyingAnswers == nil {
		doc.ClarifyingAnswers = map[string]string{}
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%w: %s", archive.ErrDuplicateID, r.ID)
	}
	if err != nil {
		return "", fmt.Errorf("archive: insert: %w", err)
	}
	return doc.ID.Hex(), nil
}

// List implements [archive.Store].
func (s *ArchiveStore) List(ctx context.Context) ([]archive.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	out := make([]archive.Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

// Get implements [archive.Store]. Ids that are not valid ObjectIDs are
// reported as [archive.ErrNotFound].
func (s *ArchiveStore) Get(ctx context.Context, id string) (archive.Record, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return archive.Record{}, archive.ErrNotFound
	}
	var d document
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return archive.Record{}, archive.ErrNotFound
	}
	if err != nil {
		return archive.Record{}, fmt.Errorf("archive: get: %w", err)
	}
	return d.record(), nil
}

// Count implements [archive.Store].
func (s *ArchiveStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("archive: count: %w", err)
	}
	return int(n), nil
}
