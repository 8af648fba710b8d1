// Package retrieval fetches market snippets from a web-search provider and
// caches them by exact query.
//
// Entries never expire: once a query has been answered successfully, the
// stored text is returned for every later lookup of the same query. Failed
// searches are never cached.
package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
)

// MissingKeyMessage is returned by [Cache.Fetch] when no search provider is
// configured.
const MissingKeyMessage = "⚠️ search API key missing — cannot fetch market data."

// ErrorPrefix starts the text returned when a search fails.
const ErrorPrefix = "Error fetching market data: "

// Defaults applied by [NewCache].
const (
	DefaultMaxResults = 5
	DefaultTimeout    = 15 * time.Second
)

// ErrNotFound is returned by [Store.Lookup] when no entry exists for a query.
var ErrNotFound = errors.New("retrieval: cache entry not found")

// Entry is one cached search answer.
type Entry struct {
	Query     string    `json:"query" bson:"query"`
	Results   string    `json:"results" bson:"results"`
	FetchedAt time.Time `json:"fetched_at" bson:"fetched_at"`
}

// Store persists cache entries keyed by exact query text.
//
// Implementations must be safe for concurrent use. Put must not replace an
// existing entry for the same query.
type Store interface {
	Lookup(ctx context.Context, query string) (Entry, error)
	Put(ctx context.Context, e Entry) error
}

// Cache gates a search provider behind a [Store].
type Cache struct {
	provider     search.Provider
	providerName string
	store        Store
	maxResults   int
	timeout      time.Duration
	metrics      *observe.Metrics
	now          func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxResults overrides the number of results requested and kept.
func WithMaxResults(n int) Option {
	return func(c *Cache) { c.maxResults = n }
}

// WithTimeout overrides the per-search deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithProviderName sets the provider label recorded on metrics.
func WithProviderName(name string) Option {
	return func(c *Cache) { c.providerName = name }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithClock overrides the time source used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache returns a Cache. A nil provider means the search credential is
// missing; Fetch then answers with [MissingKeyMessage] without touching the
// store.
func NewCache(p search.Provider, store Store, opts ...Option) *Cache {
	c := &Cache{
		provider:     p,
		providerName: "search",
		store:        store,
		maxResults:   DefaultMaxResults,
		timeout:      DefaultTimeout,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	if c.store == nil {
		c.store = NewMemStore()
	}
	return c
}

// Fetch returns the market snippets for query joined by blank lines, or an
// error string starting with [ErrorPrefix]. It never returns a Go error; the
// text is meant to be embedded in a prompt either way.
func (c *Cache) Fetch(ctx context.Context, query string) string {
	if c.provider == nil {
		return MissingKeyMessage
	}
	log := observe.Logger(ctx)

	e, err := c.store.Lookup(ctx, query)
	switch {
	case err == nil:
		c.metrics.RecordCacheLookup(ctx, true)
		return e.Results
	case !errors.Is(err, ErrNotFound):
		log.Warn("cache lookup failed, treating as miss", "err", err)
	}
	c.metrics.RecordCacheLookup(ctx, false)

	text, err := c.search(ctx, query)
	if err != nil {
		c.metrics.RecordProviderRequest(ctx, c.providerName, "search", "error")
		c.metrics.RecordProviderError(ctx, c.providerName, "search")
		log.Warn("market search failed", "provider", c.providerName, "err", err)
		return ErrorPrefix + err.Error()
	}
	c.metrics.RecordProviderRequest(ctx, c.providerName, "search", "ok")

	entry := Entry{Query: query, Results: text, FetchedAt: c.now().UTC()}
	if err := c.store.Put(ctx, entry); err != nil {
		log.Warn("cache insert failed", "err", err)
	}
	return text
}

func (c *Cache) search(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	results, err := c.provider.Search(ctx, query, c.maxResults)
	c.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}

	snippets := make([]string, 0, len(results))
	for _, r := range results {
		if r.Content != "" {
			snippets = append(snippets, r.Content)
		}
	}
	if len(snippets) > c.maxResults {
		snippets = snippets[:c.maxResults]
	}
	return strings.Join(snippets, "\n\n"), nil
}
