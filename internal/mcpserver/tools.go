package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/persona"
)

// previewLen is the summary preview length in list_analyses.
const previewLen = 200

type ideaInput struct {
	Title       string `json:"title" jsonschema:"short name of the idea"`
	Description string `json:"description" jsonschema:"what the product does and for whom"`
}

type question struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type clarifyOutput struct {
	Questions []question `json:"questions"`
}

type analyzeInput struct {
	Title       string `json:"title" jsonschema:"short name of the idea"`
	Description string `json:"description" jsonschema:"what the product does and for whom"`

	// Questions are the question texts returned by clarify_idea. When empty
	// new questions are generated and Answers must use their ids.
	Questions []string          `json:"questions,omitempty" jsonschema:"question texts from clarify_idea in the order returned"`
	Answers   map[string]string `json:"answers,omitempty" jsonschema:"answers keyed by question id such as Q1"`
	Rounds    int               `json:"rounds,omitempty" jsonschema:"number of optimist/critic rounds; defaults to 3"`
}

type turnOutput struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type analyzeOutput struct {
	ID             string       `json:"id,omitempty"`
	Saved          bool         `json:"saved"`
	SaveError      string       `json:"save_error,omitempty"`
	Turns          []turnOutput `json:"turns"`
	Transcript     string       `json:"debate_transcript"`
	FinalSummary   string       `json:"final_summary"`
	MarketInsight  string       `json:"market_insight,omitempty"`
	InvestorOutput string       `json:"investor_output,omitempty"`
}

type listInput struct{}

type summary struct {
	ID        string `json:"id"`
	IdeaTitle string `json:"idea_title"`
	CreatedAt string `json:"created_at"`
	Preview   string `json:"preview"`
}

type listOutput struct {
	Count    int       `json:"count"`
	Analyses []summary `json:"analyses"`
}

type getInput struct {
	ID string `json:"id" jsonschema:"analysis id as returned by list_analyses"`
}

type analysisOutput struct {
	ID                string            `json:"id"`
	IdeaTitle         string            `json:"idea_title"`
	IdeaDescription   string            `json:"idea_description"`
	ClarifyingAnswers map[string]string `json:"clarifying_answers"`
	DebateTranscript  string            `json:"debate_transcript"`
	FinalSummary      string            `json:"final_summary"`
	MarketInsight     string            `json:"market_insight,omitempty"`
	InvestorOutput    string            `json:"investor_output,omitempty"`
	CreatedAt         string            `json:"created_at"`
}

type marketInput struct {
	Query string `json:"query" jsonschema:"search query such as an idea title and description"`
}

type marketOutput struct {
	Query   string `json:"query"`
	Results string `json:"results"`
}

func (s *Server) clarifyIdea(ctx context.Context, _ *mcpsdk.CallToolRequest, in ideaInput) (*mcpsdk.CallToolResult, clarifyOutput, error) {
	sess := debate.NewSession()
	qs, err := sess.SubmitIdea(ctx, s.cfg.Clarifier, in.Title, in.Description)
	if err != nil {
		return nil, clarifyOutput{}, err
	}
	out := clarifyOutput{Questions: make([]question, 0, len(qs))}
	for i, q := range qs {
		out.Questions = append(out.Questions, question{ID: debate.QuestionID(i), Text: persona.CleanQuestion(q)})
	}
	return nil, out, nil
}

func (s *Server) analyzeIdea(ctx context.Context, _ *mcpsdk.CallToolRequest, in analyzeInput) (*mcpsdk.CallToolResult, analyzeOutput, error) {
	var clarifier debate.Clarifier = s.cfg.Clarifier
	if len(in.Questions) > 0 {
		clarifier = fixedQuestions(in.Questions)
	}

	sess := debate.NewSession()
	if _, err := sess.SubmitIdea(ctx, clarifier, in.Title, in.Description); err != nil {
		return nil, analyzeOutput{}, err
	}
	for id, text := range in.Answers {
		if err := sess.Answer(id, text); err != nil {
			return nil, analyzeOutput{}, fmt.Errorf("answer %s: %w", id, err)
		}
	}

	rounds := in.Rounds
	if rounds == 0 {
		rounds = min(debate.DefaultRounds, s.cfg.Runner.MaxRounds())
	}

	res, err := s.cfg.Runner.Run(ctx, sess, rounds, logSink{log: observe.Logger(ctx)})
	if err != nil && !errors.Is(err, debate.ErrSaveFailed) {
		return nil, analyzeOutput{}, err
	}

	out := analyzeOutput{
		ID:             res.RecordID,
		Saved:          res.RecordID != "",
		Turns:          make([]turnOutput, 0, len(res.Turns)),
		Transcript:     res.Transcript,
		FinalSummary:   res.FinalSummary,
		MarketInsight:  res.MarketInsight,
		InvestorOutput: res.InvestorOutput,
	}
	if res.SaveErr != nil {
		out.SaveError = res.SaveErr.Error()
	}
	for _, t := range res.Turns {
		out.Turns = append(out.Turns, turnOutput{Label: t.Label(), Text: t.Text})
	}
	return nil, out, nil
}

func (s *Server) listAnalyses(ctx context.Context, _ *mcpsdk.CallToolRequest, _ listInput) (*mcpsdk.CallToolResult, listOutput, error) {
	records, err := s.cfg.Archive.List(ctx)
	if err != nil {
		return nil, listOutput{}, err
	}
	out := listOutput{Count: len(records), Analyses: make([]summary, 0, len(records))}
	for _, r := range records {
		out.Analyses = append(out.Analyses, summary{
			ID:        r.ID,
			IdeaTitle: r.IdeaTitle,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
			Preview:   r.Preview(previewLen),
		})
	}
	return nil, out, nil
}

func (s *Server) getAnalysis(ctx context.Context, _ *mcpsdk.CallToolRequest, in getInput) (*mcpsdk.CallToolResult, analysisOutput, error) {
	r, err := s.cfg.Archive.Get(ctx, in.ID)
	if errors.Is(err, archive.ErrNotFound) {
		return nil, analysisOutput{}, fmt.Errorf("analysis %q not found", in.ID)
	}
	if err != nil {
		return nil, analysisOutput{}, err
	}
	if r.ClarifyingAnswers == nil {
		r.ClarifyingAnswers = map[string]string{}
	}
	return nil, analysisOutput{
		ID:                r.ID,
		IdeaTitle:         r.IdeaTitle,
		IdeaDescription:   r.IdeaDescription,
		ClarifyingAnswers: r.ClarifyingAnswers,
		DebateTranscript:  r.DebateTranscript,
		FinalSummary:      r.FinalSummary,
		MarketInsight:     r.MarketInsight,
		InvestorOutput:    r.InvestorOutput,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}, nil
}

func (s *Server) marketResearch(ctx context.Context, _ *mcpsdk.CallToolRequest, in marketInput) (*mcpsdk.CallToolResult, marketOutput, error) {
	if in.Query == "" {
		return nil, marketOutput{}, errors.New("query is required")
	}
	return nil, marketOutput{Query: in.Query, Results: s.cfg.Market.Fetch(ctx, in.Query)}, nil
}

// fixedQuestions replays questions a client already received from
// clarify_idea so answer ids stay stable across calls.
type fixedQuestions []string

func (f fixedQuestions) Questions(context.Context, string, string) []string {
	return f
}

// logSink reports finished turns to the log. MCP clients only see the final
// result.
type logSink struct {
	debate.NopSink
	log *slog.Logger
}

func (l logSink) TurnFinished(t debate.Turn) {
	l.log.Debug("turn finished", "label", t.Label(), "chars", len(t.Text))
}

func (l logSink) Saved(id string) {
	l.log.Info("analysis saved", "id", id)
}

func (l logSink) SaveFailed(err error) {
	l.log.Error("failed to save analysis", "err", err)
}
