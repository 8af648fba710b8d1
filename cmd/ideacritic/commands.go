package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/ideacritic/internal/app"
	"github.com/MrWong99/ideacritic/internal/config"
	"github.com/MrWong99/ideacritic/internal/console"
	"github.com/MrWong99/ideacritic/internal/mcpserver"
	"github.com/MrWong99/ideacritic/internal/web"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer st.close()

			a := st.app
			srv, err := web.New(web.Config{
				Clarifier:     a.Clarifier(),
				Runner:        a.Orchestrator(),
				Archive:       a.Archive(),
				Sessions:      app.NewSessionManager(),
				Checkers:      a.Checkers(),
				Metrics:       a.Metrics(),
				DefaultRounds: st.cfg.Debate.DefaultRounds,
			})
			if err != nil {
				return err
			}

			if opts.configPath != "" {
				w, err := config.NewWatcher(opts.configPath, func(old, new *config.Config) {
					applyConfigChange(st, srv, config.Diff(old, new))
				})
				if err != nil {
					return fmt.Errorf("watch config: %w", err)
				}
				defer w.Stop()
			}

			if addr == "" {
				addr = st.cfg.Server.ListenAddr
			}
			printStartupSummary(cmd.OutOrStdout(), st.cfg, addr)
			slog.Info("server ready, press Ctrl+C to shut down", "addr", addr)

			if err := srv.ListenAndServe(ctx, addr); err != nil {
				return err
			}
			slog.Info("shutdown signal received, stopping")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.listen_addr)")
	return cmd
}

// applyConfigChange applies the live-reloadable parts of a config change.
func applyConfigChange(st *stack, srv *web.Server, d config.ConfigDiff) {
	if d.Empty() {
		return
	}
	if d.LogLevelChanged {
		st.level.Set(parseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.DebateChanged {
		srv.SetDefaultRounds(d.NewDebate.DefaultRounds)
		slog.Info("default rounds changed", "rounds", srv.DefaultRounds())
	}
	for _, field := range d.RestartRequired {
		slog.Warn("config change requires restart", "field", field)
	}
}

func newDebateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "debate",
		Short: "Analyse an idea interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer st.close()

			c := console.New(cmd.InOrStdin(), cmd.OutOrStdout(), st.app.Clarifier(), st.app.Orchestrator(),
				console.WithDefaultRounds(st.cfg.Debate.DefaultRounds))
			_, err = c.Run(ctx)
			if errors.Is(err, console.ErrAborted) || ctx.Err() != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "\nAborted.")
				return nil
			}
			// On ErrSaveFailed the report was already printed; only the exit
			// status reports the failure.
			return err
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer st.close()

			return console.PrintHistory(ctx, cmd.OutOrStdout(), st.app.Archive(), full)
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "print the complete report of every analysis")
	return cmd
}

func newMCPCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve analysis tools over MCP on stdio",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing the tools
clarify_idea, analyze_idea, list_analyses, get_analysis and market_research.
Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer st.close()

			a := st.app
			srv, err := mcpserver.New(mcpserver.Config{
				Clarifier: a.Clarifier(),
				Runner:    a.Orchestrator(),
				Archive:   a.Archive(),
				Market:    a.Market(),
				Version:   version,
			})
			if err != nil {
				return err
			}
			return srv.ServeStdio(ctx)
		},
	}
}
