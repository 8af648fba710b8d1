package mcpserver_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/mcpserver"
	"github.com/MrWong99/ideacritic/internal/persona"
	"github.com/MrWong99/ideacritic/internal/retrieval"
	"github.com/MrWong99/ideacritic/pkg/provider/llm"
	llmmock "github.com/MrWong99/ideacritic/pkg/provider/llm/mock"
	"github.com/MrWong99/ideacritic/pkg/provider/search"
	searchmock "github.com/MrWong99/ideacritic/pkg/provider/search/mock"
)

type fixture struct {
	session *mcpsdk.ClientSession
	store   *archive.MemStore
	llm     *llmmock.Provider
	search  *searchmock.Provider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p := &llmmock.Provider{
		StreamChunks:     []llm.Chunk{{Text: "Solid "}, {Text: "point."}},
		CompleteResponse: &llm.CompletionResponse{Content: "1. Who pays?\n2. Who competes?"},
	}
	sp := &searchmock.Provider{Results: []search.Result{{Content: "market is growing"}}}
	store := archive.NewMemStore()
	market := retrieval.NewCache(sp, retrieval.NewMemStore())

	s, err := mcpserver.New(mcpserver.Config{
		Clarifier: persona.NewClarifier(p),
		Runner:    debate.New(persona.NewDispatcher(p, persona.WithMarketSource(market)), store),
		Archive:   store,
		Market:    market,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("mcpserver.New: %v", err)
	}

	ctx := context.Background()
	serverT, clientT := mcpsdk.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverT)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })

	return &fixture{session: cs, store: store, llm: p, search: sp}
}

// call invokes a tool and returns the text content and the error flag.
func (f *fixture) call(t *testing.T, name string, args map[string]any) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := f.session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	return sb.String(), res.IsError
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("decode %q: %v", text, err)
	}
	return v
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := mcpserver.New(mcpserver.Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	for _, want := range []string{"clarifier", "runner", "archive"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestListTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	got := map[string]bool{}
	for tool, err := range f.session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Tools: %v", err)
		}
		got[tool.Name] = true
	}
	for _, want := range []string{"clarify_idea", "analyze_idea", "list_analyses", "get_analysis", "market_research"} {
		if !got[want] {
			t.Errorf("tool %q not registered", want)
		}
	}
}

func TestClarifyIdea(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	text, isErr := f.call(t, "clarify_idea", map[string]any{
		"title":       "EcoSnap",
		"description": "Photo-based recycling guidance.",
	})
	if isErr {
		t.Fatalf("clarify_idea failed: %s", text)
	}
	out := decode[struct {
		Questions []struct{ ID, Text string } `json:"questions"`
	}](t, text)
	if len(out.Questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(out.Questions))
	}
	if out.Questions[0].ID != "Q1" || out.Questions[0].Text != "Who pays?" {
		t.Errorf("first question = %+v", out.Questions[0])
	}
}

func TestClarifyIdea_Incomplete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, isErr := f.call(t, "clarify_idea", map[string]any{"title": "  ", "description": "x"})
	if !isErr {
		t.Fatal("expected tool error for blank title")
	}
	if n := f.llm.CompleteCallCount(); n != 0 {
		t.Errorf("clarifier called %d times for incomplete idea", n)
	}
}

func TestAnalyzeIdea_SavesAndLists(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	text, isErr := f.call(t, "analyze_idea", map[string]any{
		"title":       "EcoSnap",
		"description": "Photo-based recycling guidance.",
		"questions":   []string{"1. Who pays?", "2. Who competes?"},
		"answers":     map[string]string{"Q1": "Municipalities"},
		"rounds":      1,
	})
	if isErr {
		t.Fatalf("analyze_idea failed: %s", text)
	}
	out := decode[struct {
		ID           string `json:"id"`
		Saved        bool   `json:"saved"`
		Turns        []struct{ Label, Text string }
		FinalSummary string `json:"final_summary"`
	}](t, text)

	if !out.Saved || out.ID == "" {
		t.Fatalf("analysis not saved: %+v", out)
	}
	if len(out.Turns) != 5 {
		t.Errorf("got %d turns, want 5", len(out.Turns))
	}
	if out.FinalSummary != "Solid point." {
		t.Errorf("FinalSummary = %q", out.FinalSummary)
	}
	// Questions were supplied, so the clarifier was never asked.
	if n := f.llm.CompleteCallCount(); n != 0 {
		t.Errorf("clarifier called %d times, want 0", n)
	}
	if n := f.search.CallCount(); n != 1 {
		t.Errorf("search called %d times, want 1", n)
	}

	rec, err := f.store.Get(context.Background(), out.ID)
	if err != nil {
		t.Fatalf("archive Get: %v", err)
	}
	if rec.ClarifyingAnswers["Q1"] != "Municipalities" {
		t.Errorf("answers = %v", rec.ClarifyingAnswers)
	}

	text, isErr = f.call(t, "list_analyses", map[string]any{})
	if isErr {
		t.Fatalf("list_analyses failed: %s", text)
	}
	list := decode[struct {
		Count    int `json:"count"`
		Analyses []struct {
			ID        string `json:"id"`
			IdeaTitle string `json:"idea_title"`
		} `json:"analyses"`
	}](t, text)
	if list.Count != 1 || list.Analyses[0].ID != out.ID || list.Analyses[0].IdeaTitle != "EcoSnap" {
		t.Errorf("list = %+v", list)
	}

	text, isErr = f.call(t, "get_analysis", map[string]any{"id": out.ID})
	if isErr {
		t.Fatalf("get_analysis failed: %s", text)
	}
	got := decode[struct {
		DebateTranscript string `json:"debate_transcript"`
	}](t, text)
	if !strings.HasPrefix(got.DebateTranscript, "Round 1 - Optimist: Solid point.") {
		t.Errorf("transcript = %q", got.DebateTranscript)
	}
}

func TestAnalyzeIdea_UnknownAnswer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, isErr := f.call(t, "analyze_idea", map[string]any{
		"title":       "EcoSnap",
		"description": "Photo-based recycling guidance.",
		"answers":     map[string]string{"Q9": "?"},
	})
	if !isErr {
		t.Fatal("expected tool error for unknown question id")
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Errorf("archive has %d records, want 0", n)
	}
}

func TestAnalyzeIdea_InvalidRounds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, isErr := f.call(t, "analyze_idea", map[string]any{
		"title":       "EcoSnap",
		"description": "Photo-based recycling guidance.",
		"rounds":      9,
	})
	if !isErr {
		t.Fatal("expected tool error for 9 rounds")
	}
	if n := len(f.llm.Calls()); n != 0 {
		t.Errorf("persona calls = %d, want 0", n)
	}
}

func TestGetAnalysis_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	text, isErr := f.call(t, "get_analysis", map[string]any{"id": "missing"})
	if !isErr {
		t.Fatal("expected tool error for missing id")
	}
	if !strings.Contains(text, "not found") {
		t.Errorf("error text = %q", text)
	}
}

func TestMarketResearch_Cached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for range 2 {
		text, isErr := f.call(t, "market_research", map[string]any{"query": "recycling apps"})
		if isErr {
			t.Fatalf("market_research failed: %s", text)
		}
		out := decode[struct {
			Results string `json:"results"`
		}](t, text)
		if out.Results != "market is growing" {
			t.Errorf("results = %q", out.Results)
		}
	}
	if n := f.search.CallCount(); n != 1 {
		t.Errorf("search called %d times, want 1", n)
	}
}
