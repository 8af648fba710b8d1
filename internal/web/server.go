// Package web serves the browser UI: a "New Analysis" page that streams the
// debate over a websocket, the "Analysis History" pages, a small JSON API and
// the operational endpoints.
//
// Routes:
//
//	GET  /                      new analysis page
//	POST /idea                  submit title and description
//	POST /reset                 start a new analysis
//	GET  /ws/analysis           websocket debate stream
//	GET  /history               archive list
//	GET  /history/{id}          archived report
//	GET  /api/analyses          archive list as JSON
//	GET  /api/analyses/{id}     archived report as JSON
//	GET  /healthz, /readyz      probes
//	GET  /metrics               Prometheus scrape endpoint
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/ideacritic/internal/app"
	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/health"
	"github.com/MrWong99/ideacritic/internal/observe"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

// Runner executes a debate. [debate.Orchestrator] is the production implementation.
type Runner interface {
	Run(ctx context.Context, s *debate.Session, rounds int, sink debate.Sink) (*debate.Result, error)
	MaxRounds() int
}

// Config holds all dependencies for a [Server].
type Config struct {
	Clarifier     debate.Clarifier
	Runner        Runner
	Archive       archive.Store
	Sessions      *app.SessionManager
	Checkers      []health.Checker
	Metrics       *observe.Metrics
	DefaultRounds int
}

// Server is the HTTP front end. It is safe for concurrent use.
type Server struct {
	clarifier     debate.Clarifier
	runner        Runner
	archive       archive.Store
	sessions      *app.SessionManager
	health        *health.Handler
	metrics       *observe.Metrics
	pages         map[string]*template.Template
	defaultRounds atomic.Int32
}

// New parses the page templates and returns a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Clarifier == nil || cfg.Runner == nil || cfg.Archive == nil {
		return nil, errors.New("web: clarifier, runner and archive are required")
	}
	s := &Server{
		clarifier: cfg.Clarifier,
		runner:    cfg.Runner,
		archive:   cfg.Archive,
		sessions:  cfg.Sessions,
		health:    health.New(cfg.Checkers...),
		metrics:   cfg.Metrics,
		pages:     make(map[string]*template.Template),
	}
	if s.sessions == nil {
		s.sessions = app.NewSessionManager()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.SetDefaultRounds(cfg.DefaultRounds)

	for _, page := range []string{"new.html", "history.html", "detail.html"} {
		t, err := template.New("").ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", page, err)
		}
		s.pages[page] = t
	}
	return s, nil
}

// SetDefaultRounds changes the preselected round count. Values outside the
// accepted range are clamped.
func (s *Server) SetDefaultRounds(n int) {
	if n == 0 {
		n = debate.DefaultRounds
	}
	n = min(max(n, debate.MinRounds), s.runner.MaxRounds())
	s.defaultRounds.Store(int32(n))
}

// DefaultRounds returns the preselected round count.
func (s *Server) DefaultRounds() int {
	return int(s.defaultRounds.Load())
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleNew)
	mux.HandleFunc("POST /idea", s.handleIdea)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("GET /ws/analysis", s.handleStream)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /history/{id}", s.handleDetail)
	mux.HandleFunc("GET /api/analyses", s.handleAPIList)
	mux.HandleFunc("GET /api/analyses/{id}", s.handleAPIGet)
	mux.Handle("GET /metrics", observe.MetricsHandler())
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Idle browser sessions are swept in the background.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like [Server.ListenAndServe] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("web server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return s.sessions.Run(gctx, sweepInterval)
	})
	return g.Wait()
}
