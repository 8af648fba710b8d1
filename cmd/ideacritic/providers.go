package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/ideacritic/internal/app"
	"github.com/MrWong99/ideacritic/internal/config"
	"github.com/MrWong99/ideacritic/pkg/provider/llm"
	"github.com/MrWong99/ideacritic/pkg/provider/llm/anyllm"
	"github.com/MrWong99/ideacritic/pkg/provider/llm/gemini"
	"github.com/MrWong99/ideacritic/pkg/provider/llm/openai"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
	"github.com/MrWong99/ideacritic/pkg/provider/search/tavily"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// gemini is the default and talks to the Gemini API through genai directly.
	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []gemini.Option
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		return gemini.New(context.Background(), entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := entry.DurationOption("timeout", 0); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional APIKey and
	// optional BaseURL. Local servers (ollama, llamacpp, llamafile) ignore the key.
	for _, name := range []string{"anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ── Search ────────────────────────────────────────────────────────────────

	reg.RegisterSearch("tavily", func(entry config.ProviderEntry) (search.Provider, error) {
		var opts []tavily.Option
		if entry.BaseURL != "" {
			opts = append(opts, tavily.WithBaseURL(entry.BaseURL))
		}
		opts = append(opts, tavily.WithTimeout(entry.DurationOption("timeout", config.DefaultSearchTimeout)))
		return tavily.New(entry.APIKey, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. A missing search
// API key is not an error: the market analyst then reports that no market
// data is available and no search is ever attempted.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	entry := cfg.Providers.Search
	switch {
	case entry.Name == "":
	case entry.APIKey == "":
		slog.Warn("search api key not set, market analysis will run without live data", "name", entry.Name)
	default:
		sp, err := reg.CreateSearch(entry)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("unknown search provider, skipping", "name", entry.Name)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("create search provider %q: %w", entry.Name, err)
		}
		ps.Search = sp
		slog.Info("provider created", "kind", "search", "name", entry.Name)
	}

	return ps, nil
}

// optString extracts a string value from a provider Options map.
// Returns "" if the key is absent or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return strings.TrimSpace(s)
}
