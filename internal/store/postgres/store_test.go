package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/retrieval"
	"github.com/MrWong99/ideacritic/internal/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if IDEACRITIC_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("IDEACRITIC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("IDEACRITIC_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with empty tables.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS debates CASCADE",
		"DROP TABLE IF EXISTS market_cache CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			t.Fatalf("drop schema: %v", err)
		}
	}
	pool.Close()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestNewStore_BadDSN(t *testing.T) {
	t.Parallel()
	if _, err := postgres.NewStore(context.Background(), "::not a dsn::"); err == nil {
		t.Fatal("expected error for malformed DSN")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	// A second store on the same database re-runs the migrations.
	again, err := postgres.NewStore(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("second NewStore: %v", err)
	}
	again.Close()
}

func TestArchive_InsertGetList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := store.Archive()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := archive.Record{
		IdeaTitle:         "EcoSnap",
		IdeaDescription:   "Photo-based recycling guide",
		ClarifyingAnswers: map[string]string{"q0": "Households", "q1": "Subscription"},
		DebateTranscript:  "Round 1 - Optimist:\nGreat idea",
		FinalSummary:      "Promising",
		CreatedAt:         base,
	}
	second := archive.Record{
		IdeaTitle:      "PetPal",
		FinalSummary:   "Crowded market",
		MarketInsight:  "Large TAM",
		InvestorOutput: "Verdict: Maybe",
		CreatedAt:      base.Add(time.Hour),
	}

	id1, err := a.Insert(ctx, first)
	if err != nil {
		t.Fatalf("Insert first: %v", err)
	}
	id2, err := a.Insert(ctx, second)
	if err != nil {
		t.Fatalf("Insert second: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids must be unique and non-empty, got %q and %q", id1, id2)
	}

	got, err := a.Get(ctx, id1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id1 || got.IdeaTitle != "EcoSnap" {
		t.Errorf("Get = %+v", got)
	}
	if got.ClarifyingAnswers["q1"] != "Subscription" {
		t.Errorf("answers = %v", got.ClarifyingAnswers)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}

	list, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != id2 || list[1].ID != id1 {
		t.Errorf("List order wrong: %+v", list)
	}

	n, err := a.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestArchive_GetNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"not-a-uuid", "3f1c1f6e-7d5e-4f2a-9b1e-000000000000"} {
		if _, err := store.Archive().Get(ctx, id); !errors.Is(err, archive.ErrNotFound) {
			t.Errorf("Get(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestArchive_InsertRejectsNonUUID(t *testing.T) {
	t.Parallel()
	var a postgres.ArchiveStore
	if _, err := a.Insert(context.Background(), archive.Record{ID: "ecosnap-1"}); !errors.Is(err, archive.ErrInvalidID) {
		t.Errorf("Insert err = %v, want ErrInvalidID", err)
	}
}

func TestArchive_InsertKeepsCallerID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a := store.Archive()

	const want = "3f1c1f6e-7d5e-4f2a-9b1e-0000000000aa"
	id, err := a.Insert(ctx, archive.Record{ID: want, IdeaTitle: "EcoSnap"})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id != want {
		t.Errorf("id = %q, want %q", id, want)
	}
	if got, err := a.Get(ctx, want); err != nil || got.IdeaTitle != "EcoSnap" {
		t.Errorf("Get = %+v, %v", got, err)
	}
	if _, err := a.Insert(ctx, archive.Record{ID: want}); !errors.Is(err, archive.ErrDuplicateID) {
		t.Errorf("second Insert err = %v, want ErrDuplicateID", err)
	}
}

func TestCache_LookupPut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	c := store.Cache()

	if _, err := c.Lookup(ctx, "startup market trends 2025 for EcoSnap"); !errors.Is(err, retrieval.ErrNotFound) {
		t.Fatalf("Lookup on empty cache err = %v, want ErrNotFound", err)
	}

	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entry := retrieval.Entry{Query: "q", Results: "first", FetchedAt: at}
	if err := c.Put(ctx, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, retrieval.Entry{Query: "q", Results: "second", FetchedAt: at.Add(time.Hour)}); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := c.Lookup(ctx, "q")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Results != "first" || !got.FetchedAt.Equal(at) {
		t.Errorf("Lookup = %+v, want first entry kept", got)
	}
}
