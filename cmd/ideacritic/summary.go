package main

import (
	"fmt"
	"io"

	"github.com/MrWong99/ideacritic/internal/config"
)

func printStartupSummary(w io.Writer, cfg *config.Config, addr string) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║       IdeaCritic, startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "LLM", providerValue(cfg.Providers.LLM))
	search := providerValue(cfg.Providers.Search)
	if cfg.Providers.Search.APIKey == "" {
		search = "(no api key)"
	}
	printRow(w, "Search", search)
	printRow(w, "Storage", string(cfg.Storage.Backend))
	printRow(w, "Rounds", fmt.Sprintf("%d (max %d)", cfg.Debate.DefaultRounds, cfg.Debate.MaxRounds))
	printRow(w, "Listen addr", addr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerValue(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(w io.Writer, label, value string) {
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}
