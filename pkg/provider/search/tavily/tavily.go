// Package tavily provides a search provider backed by the Tavily search API.
//
// Requests are POSTed as JSON to {baseURL}/search with the API key sent as a
// bearer token:
//
//	p, err := tavily.New(os.Getenv("TAVILY_API_KEY"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	hits, err := p.Search(ctx, "Recent market trends for: EcoSnap", 5)
package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/ideacritic/pkg/provider/search"
)

// DefaultBaseURL is the public Tavily API endpoint.
const DefaultBaseURL = "https://api.tavily.com"

var _ search.Provider = (*Provider)(nil)

// Provider implements search.Provider against the Tavily HTTP API.
type Provider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type config struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the API base URL. Used to point at a proxy or at a test
// server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a timeout on the underlying HTTP client. Callers usually
// bound individual searches with a context deadline instead.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// New constructs a Tavily provider. apiKey must not be empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily: apiKey must not be empty")
	}
	cfg := &config{baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.baseURL == "" {
		cfg.baseURL = DefaultBaseURL
	}

	hc := &http.Client{}
	if cfg.httpClient != nil {
		// Copy so the timeout does not leak into the caller's client.
		c := *cfg.httpClient
		hc = &c
	}
	if cfg.timeout > 0 {
		hc.Timeout = cfg.timeout
	}

	return &Provider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		httpClient: hc,
	}, nil
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

type searchResponse struct {
	Results []search.Result `json:"results"`
}

// Search implements search.Provider. The response is returned as delivered,
// even when it holds more than maxResults hits.
func (p *Provider) Search(ctx context.Context, query string, maxResults int) ([]search.Result, error) {
	body, err := json.Marshal(searchRequest{Query: query, NumResults: maxResults})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tavily: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	return out.Results, nil
}
