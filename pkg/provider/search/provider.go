// Package search defines the Provider interface for web-search backends.
//
// A search provider turns a free-text query into a short list of text snippets.
// IdeaCritic's retrieval cache uses it to ground the Market Analyst persona in
// recent market data.
//
// Implementations must be safe for concurrent use.
package search

import "context"

// Result is a single search hit.
type Result struct {
	// Title is the page title, when the backend reports one.
	Title string `json:"title,omitempty"`

	// URL is the source address of the hit.
	URL string `json:"url,omitempty"`

	// Content is the extracted text snippet. Hits with empty Content carry no
	// usable market data and are skipped by callers.
	Content string `json:"content"`
}

// Provider is the abstraction over any web-search backend.
type Provider interface {
	// Search runs query and returns the backend's hits in relevance order.
	// maxResults is forwarded to the backend as a hint; callers filter empty
	// hits first and apply the limit themselves.
	// Transport failures, non-2xx responses and undecodable bodies are returned
	// as errors. The call honours ctx cancellation and deadlines.
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
