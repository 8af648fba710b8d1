// Package mcpserver exposes idea analysis over the Model Context Protocol.
//
// The server speaks MCP over stdio (or any [mcpsdk.Transport]) using the
// official Go SDK and registers five tools:
//
//   - "clarify_idea"    generates clarifying questions for an idea.
//   - "analyze_idea"    runs a full debate and archives the result.
//   - "list_analyses"   lists archived analyses, newest first.
//   - "get_analysis"    returns one archived analysis by id.
//   - "market_research" runs a cached market search.
//
// Every analyze_idea call uses a fresh [debate.Session]; nothing is shared
// between calls except the archive and the market cache.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/observe"
)

// Runner executes a debate. [debate.Orchestrator] is the production implementation.
type Runner interface {
	Run(ctx context.Context, s *debate.Session, rounds int, sink debate.Sink) (*debate.Result, error)
	MaxRounds() int
}

// Market answers market research queries. [retrieval.Cache] is the
// production implementation.
type Market interface {
	Fetch(ctx context.Context, query string) string
}

// Config holds the dependencies of a [Server]. Market may be nil, in which
// case the market_research tool is not registered.
type Config struct {
	Clarifier debate.Clarifier
	Runner    Runner
	Archive   archive.Store
	Market    Market

	// Version is reported to clients during initialisation.
	Version string
}

// Server is an MCP server bound to one application.
type Server struct {
	cfg Config
	srv *mcpsdk.Server
}

// New validates cfg and registers all tools.
func New(cfg Config) (*Server, error) {
	var errs []error
	if cfg.Clarifier == nil {
		errs = append(errs, errors.New("clarifier is required"))
	}
	if cfg.Runner == nil {
		errs = append(errs, errors.New("runner is required"))
	}
	if cfg.Archive == nil {
		errs = append(errs, errors.New("archive is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("mcpserver: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &Server{
		cfg: cfg,
		srv: mcpsdk.NewServer(&mcpsdk.Implementation{Name: "ideacritic", Version: cfg.Version}, nil),
	}
	s.register()
	return s, nil
}

// ServeStdio serves a single client on stdin/stdout until ctx is cancelled
// or the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.Serve(ctx, &mcpsdk.StdioTransport{})
}

// Serve serves a single client over t until ctx is cancelled or the client
// disconnects.
func (s *Server) Serve(ctx context.Context, t mcpsdk.Transport) error {
	observe.Logger(ctx).Info("mcp server started", "version", s.cfg.Version)
	if err := s.srv.Run(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcpserver: serve: %w", err)
	}
	return nil
}

// Connect starts a session over t without blocking. The caller owns the
// returned session.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	ss, err := s.srv.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: connect: %w", err)
	}
	return ss, nil
}

func (s *Server) register() {
	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "clarify_idea",
		Description: "Generate clarifying questions for a startup idea. Answer them by id when calling analyze_idea.",
	}, s.clarifyIdea)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name: "analyze_idea",
		Description: "Run a multi-persona debate on a startup idea (optimist, critic, business analyst, " +
			"market analyst and investor) and archive the report.",
	}, s.analyzeIdea)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "list_analyses",
		Description: "List archived analyses, newest first.",
	}, s.listAnalyses)

	mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
		Name:        "get_analysis",
		Description: "Return the full report of one archived analysis.",
	}, s.getAnalysis)

	if s.cfg.Market != nil {
		mcpsdk.AddTool(s.srv, &mcpsdk.Tool{
			Name:        "market_research",
			Description: "Search the web for market data. Results are cached per exact query.",
		}, s.marketResearch)
	}
}
