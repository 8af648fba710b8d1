// Command ideacritic runs the IdeaCritic multi-persona startup idea analyser.
//
// Subcommands:
//
//	serve    web UI, JSON API, health and metrics endpoints
//	debate   interactive analysis in the terminal
//	history  print saved analyses
//	mcp      MCP server on stdio
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/ideacritic/internal/app"
	"github.com/MrWong99/ideacritic/internal/config"
	"github.com/MrWong99/ideacritic/internal/observe"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "ideacritic: %v\n", err)
		return 1
	}
	return 0
}

// options carries the persistent flags shared by all subcommands.
type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ideacritic",
		Short: "Stress-test startup ideas with a panel of AI personas",
		Long: `IdeaCritic runs a scripted debate between an Optimist and a Critic,
then has a Business Analyst, a Market Analyst and an Investor weigh in.
Every completed analysis is saved and can be browsed later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to the YAML configuration file (environment variables and defaults only when empty)")

	root.AddCommand(
		newServeCmd(opts),
		newDebateCmd(opts),
		newHistoryCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// stack is everything a subcommand needs after startup.
type stack struct {
	cfg      *config.Config
	app      *app.App
	level    *slog.LevelVar
	shutdown func(context.Context) error
}

// bootstrap loads the configuration, installs the logger and telemetry
// providers, creates the model and search providers and builds the
// application.
func bootstrap(ctx context.Context, opts *options) (*stack, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", opts.configPath)
		}
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("ideacritic starting",
		"version", version,
		"config", opts.configPath,
		"storage", cfg.Storage.Backend,
		"log_level", cfg.Server.LogLevel,
	)

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, err
	}

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("initialise application: %w", err)
	}

	rt := &stack{cfg: cfg, app: application, level: level}
	rt.shutdown = func(ctx context.Context) error {
		return errors.Join(application.Shutdown(ctx), otelShutdown(ctx))
	}
	return rt, nil
}

// close shuts the application down with a fresh deadline so it still runs
// after the command context was cancelled.
func (rt *stack) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}

func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
