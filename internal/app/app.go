// Package app wires all IdeaCritic subsystems into a running application.
//
// The App struct owns the full lifecycle: New connects storage and assembles
// the retrieval cache, persona dispatcher, clarifier and debate orchestrator;
// Shutdown tears everything down in order.
//
// For testing, inject in-memory or mock implementations via functional
// options (WithArchive, WithCacheStore, ...). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/config"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/health"
	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/persona"
	"github.com/MrWong99/ideacritic/internal/retrieval"
	"github.com/MrWong99/ideacritic/internal/store/mongo"
	"github.com/MrWong99/ideacritic/internal/store/postgres"
	"github.com/MrWong99/ideacritic/pkg/provider/llm"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM    llm.Provider
	Search search.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	archive    archive.Store
	cacheStore retrieval.Store
	pinger     health.Pinger
	cache      *retrieval.Cache
	dispatcher *persona.Dispatcher
	clarifier  *persona.Clarifier
	orch       *debate.Orchestrator

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithArchive injects an archive store instead of creating one from config.
func WithArchive(s archive.Store) Option {
	return func(a *App) { a.archive = s }
}

// WithCacheStore injects a market cache store instead of creating one from config.
func WithCacheStore(s retrieval.Store) Option {
	return func(a *App) { a.cacheStore = s }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). providers.LLM is
// required; a nil providers.Search disables market research.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, fmt.Errorf("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 2. Retrieval cache ───────────────────────────────────────────────
	searchEntry := cfg.Providers.Search
	a.cache = retrieval.NewCache(providers.Search, a.cacheStore,
		retrieval.WithMaxResults(searchEntry.IntOption("max_results", config.DefaultSearchResults)),
		retrieval.WithTimeout(searchEntry.DurationOption("timeout", config.DefaultSearchTimeout)),
		retrieval.WithProviderName(searchEntry.Name),
		retrieval.WithMetrics(a.metrics),
	)
	if providers.Search == nil {
		slog.Warn("no search provider configured; market analysis runs without market data")
	}

	// ── 3. Personas ──────────────────────────────────────────────────────
	a.dispatcher = persona.NewDispatcher(providers.LLM,
		persona.WithMarketSource(a.cache),
		persona.WithProviderName(cfg.Providers.LLM.Name),
		persona.WithMetrics(a.metrics),
	)
	a.clarifier = persona.NewClarifier(providers.LLM)

	// ── 4. Orchestrator ──────────────────────────────────────────────────
	a.orch = debate.New(a.dispatcher, a.archive,
		debate.WithMaxRounds(cfg.Debate.MaxRounds),
		debate.WithMetrics(a.metrics),
	)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStorage connects the configured backend or uses injected stores.
func (a *App) initStorage(ctx context.Context) error {
	if a.archive != nil && a.cacheStore != nil {
		return nil // both injected
	}

	switch a.cfg.Storage.Backend {
	case config.StorageMongo:
		store, err := mongo.NewStore(ctx, a.cfg.Storage.MongoURI, a.cfg.Storage.Database)
		if err != nil {
			return err
		}
		a.useStore(store.Archive(), store.Cache(), store)
		a.closers = append(a.closers, store.Close)
		slog.Info("connected to mongodb", "database", a.cfg.Storage.Database)

	case config.StoragePostgres:
		store, err := postgres.NewStore(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return err
		}
		a.useStore(store.Archive(), store.Cache(), store)
		a.closers = append(a.closers, func(context.Context) error {
			store.Close()
			return nil
		})
		slog.Info("connected to postgres")

	case config.StorageMemory, "":
		a.useStore(archive.NewMemStore(), retrieval.NewMemStore(), nil)

	default:
		return fmt.Errorf("unknown storage backend %q", a.cfg.Storage.Backend)
	}
	return nil
}

// useStore fills whichever of the archive and cache were not injected.
func (a *App) useStore(arch archive.Store, cache retrieval.Store, p health.Pinger) {
	if a.archive == nil {
		a.archive = arch
	}
	if a.cacheStore == nil {
		a.cacheStore = cache
	}
	a.pinger = p
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Archive returns the analysis archive.
func (a *App) Archive() archive.Store { return a.archive }

// Market returns the retrieval cache used by the Market Analyst.
func (a *App) Market() *retrieval.Cache { return a.cache }

// Dispatcher returns the persona dispatcher.
func (a *App) Dispatcher() *persona.Dispatcher { return a.dispatcher }

// Clarifier returns the clarifying-question generator.
func (a *App) Clarifier() *persona.Clarifier { return a.clarifier }

// Orchestrator returns the debate orchestrator.
func (a *App) Orchestrator() *debate.Orchestrator { return a.orch }

// Metrics returns the metrics sink shared by all subsystems.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Checkers returns the readiness checks for the configured dependencies.
// In-memory storage contributes none.
func (a *App) Checkers() []health.Checker {
	if a.pinger == nil {
		return nil
	}
	return []health.Checker{health.PingChecker("storage", a.pinger)}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
