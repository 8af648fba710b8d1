// Package mock provides a test double for the search.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/ideacritic/pkg/provider/search"
)

// SearchCall records a single invocation of Search.
type SearchCall struct {
	Query      string
	MaxResults int
}

// Provider is a mock implementation of search.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is returned by Search.
	Results []search.Result

	// Err, if non-nil, is returned as the error from Search.
	Err error

	// Calls records every invocation of Search in order.
	Calls []SearchCall
}

// Search records the call and returns Results, Err.
func (p *Provider) Search(_ context.Context, query string, maxResults int) ([]search.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SearchCall{Query: query, MaxResults: maxResults})
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]search.Result, len(p.Results))
	copy(out, p.Results)
	return out, nil
}

// CallCount returns the number of Search invocations. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

var _ search.Provider = (*Provider)(nil)
