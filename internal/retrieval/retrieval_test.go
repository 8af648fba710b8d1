package retrieval_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/ideacritic/internal/retrieval"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
	searchmock "github.com/MrWong99/ideacritic/pkg/provider/search/mock"
	"github.com/MrWong99/ideacritic/pkg/provider/search/tavily"
)

const query = "Recent market trends, competitors, pricing, funding signals for: EcoSnap"

// failingStore fails every operation.
type failingStore struct {
	lookupErr error
	putErr    error
	puts      int
}

func (f *failingStore) Lookup(context.Context, string) (retrieval.Entry, error) {
	return retrieval.Entry{}, f.lookupErr
}

func (f *failingStore) Put(context.Context, retrieval.Entry) error {
	f.puts++
	return f.putErr
}

func TestFetch_MissingProvider(t *testing.T) {
	store := &failingStore{lookupErr: errors.New("must not be called")}
	c := retrieval.NewCache(nil, store)

	got := c.Fetch(context.Background(), query)
	if got != retrieval.MissingKeyMessage {
		t.Errorf("Fetch = %q, want %q", got, retrieval.MissingKeyMessage)
	}
	if store.puts != 0 {
		t.Errorf("store touched %d times, want 0", store.puts)
	}
}

func TestFetch_MissThenHit(t *testing.T) {
	sp := &searchmock.Provider{Results: []search.Result{
		{Content: "Litter-detection startups raised $12M."},
		{Content: ""},
		{Content: "City councils pay for cleanup analytics."},
	}}
	store := retrieval.NewMemStore()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	c := retrieval.NewCache(sp, store, retrieval.WithClock(func() time.Time { return fixed }))

	first := c.Fetch(context.Background(), query)
	want := "Litter-detection startups raised $12M.\n\nCity councils pay for cleanup analytics."
	if first != want {
		t.Errorf("first Fetch = %q, want %q", first, want)
	}

	// Change what the provider would answer: the cache must not consult it.
	sp.Results = []search.Result{{Content: "different"}}
	second := c.Fetch(context.Background(), query)
	if second != first {
		t.Errorf("second Fetch = %q, want cached %q", second, first)
	}
	if n := sp.CallCount(); n != 1 {
		t.Errorf("search calls = %d, want 1", n)
	}
	if sp.Calls[0].MaxResults != retrieval.DefaultMaxResults {
		t.Errorf("maxResults = %d, want %d", sp.Calls[0].MaxResults, retrieval.DefaultMaxResults)
	}

	e, err := store.Lookup(context.Background(), query)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !e.FetchedAt.Equal(fixed) || e.FetchedAt.Location() != time.UTC {
		t.Errorf("FetchedAt = %v, want %v in UTC", e.FetchedAt, fixed)
	}
}

func TestFetch_FailureNotCached(t *testing.T) {
	sp := &searchmock.Provider{Err: errors.New("unexpected status 502")}
	store := retrieval.NewMemStore()
	c := retrieval.NewCache(sp, store)

	got := c.Fetch(context.Background(), query)
	if !strings.HasPrefix(got, retrieval.ErrorPrefix) {
		t.Errorf("Fetch = %q, want prefix %q", got, retrieval.ErrorPrefix)
	}
	if !strings.Contains(got, "502") {
		t.Errorf("Fetch = %q, want cause in text", got)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries, want 0", store.Len())
	}

	sp.Err = nil
	sp.Results = []search.Result{{Content: "recovered"}}
	if got := c.Fetch(context.Background(), query); got != "recovered" {
		t.Errorf("Fetch after recovery = %q, want %q", got, "recovered")
	}
	if n := sp.CallCount(); n != 2 {
		t.Errorf("search calls = %d, want 2", n)
	}
}

func TestFetch_TruncatesToMaxResults(t *testing.T) {
	sp := &searchmock.Provider{Results: []search.Result{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}}
	c := retrieval.NewCache(sp, nil, retrieval.WithMaxResults(2))

	if got := c.Fetch(context.Background(), query); got != "a\n\nb" {
		t.Errorf("Fetch = %q, want %q", got, "a\n\nb")
	}
}

func TestFetch_EmptySnippetsDoNotUseSlots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		results := []map[string]string{{"content": ""}}
		for _, c := range []string{"a", "b", "c", "d", "e", "f"} {
			results = append(results, map[string]string{"content": c})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
	}))
	defer srv.Close()

	p, err := tavily.New("test-key", tavily.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("tavily.New: %v", err)
	}
	c := retrieval.NewCache(p, nil)

	want := "a\n\nb\n\nc\n\nd\n\ne"
	if got := c.Fetch(context.Background(), query); got != want {
		t.Errorf("Fetch = %q, want %q", got, want)
	}
}

func TestFetch_StoreFailuresDegradeToSearch(t *testing.T) {
	sp := &searchmock.Provider{Results: []search.Result{{Content: "fresh"}}}
	store := &failingStore{
		lookupErr: errors.New("connection reset"),
		putErr:    errors.New("write concern"),
	}
	c := retrieval.NewCache(sp, store)

	if got := c.Fetch(context.Background(), query); got != "fresh" {
		t.Errorf("Fetch = %q, want %q", got, "fresh")
	}
	if store.puts != 1 {
		t.Errorf("puts = %d, want 1", store.puts)
	}
}

func TestFetch_SearchDeadline(t *testing.T) {
	sp := &blockingSearch{}
	c := retrieval.NewCache(sp, nil, retrieval.WithTimeout(20*time.Millisecond))

	got := c.Fetch(context.Background(), query)
	if !strings.HasPrefix(got, retrieval.ErrorPrefix) {
		t.Errorf("Fetch = %q, want error text", got)
	}
}

type blockingSearch struct{}

func (blockingSearch) Search(ctx context.Context, _ string, _ int) ([]search.Result, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestMemStore_PutKeepsFirst(t *testing.T) {
	s := retrieval.NewMemStore()
	ctx := context.Background()

	if _, err := s.Lookup(ctx, "q"); !errors.Is(err, retrieval.ErrNotFound) {
		t.Fatalf("Lookup on empty store: err = %v, want ErrNotFound", err)
	}
	_ = s.Put(ctx, retrieval.Entry{Query: "q", Results: "first"})
	_ = s.Put(ctx, retrieval.Entry{Query: "q", Results: "second"})

	e, err := s.Lookup(ctx, "q")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.Results != "first" {
		t.Errorf("Results = %q, want %q", e.Results, "first")
	}
}
