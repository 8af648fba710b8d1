package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/ideacritic/pkg/provider/llm"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	llm    map[string]func(ProviderEntry) (llm.Provider, error)
	search map[string]func(ProviderEntry) (search.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
		search: make(map[string]func(ProviderEntry) (search.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSearch registers a web-search provider factory under name.
func (r *Registry) RegisterSearch(name string, factory func(ProviderEntry) (search.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.search[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSearch instantiates a search provider using the factory registered under entry.Name.
func (r *Registry) CreateSearch(entry ProviderEntry) (search.Provider, error) {
	r.mu.RLock()
	factory, ok := r.search[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: search/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
