// Package console runs an interactive analysis over a line-oriented terminal.
//
// The flow mirrors the web UI: title and description are read first, the
// clarifying questions are answered one by one, the round count is chosen,
// and the debate is streamed to the output as it is generated.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/persona"
)

// ErrAborted is returned when the input ends before the analysis starts.
var ErrAborted = errors.New("console: input closed")

// Runner executes a debate. [debate.Orchestrator] is the production implementation.
type Runner interface {
	Run(ctx context.Context, s *debate.Session, rounds int, sink debate.Sink) (*debate.Result, error)
	MaxRounds() int
}

// Console reads answers from in and writes the debate to out.
type Console struct {
	in            *bufio.Scanner
	out           io.Writer
	clarifier     debate.Clarifier
	runner        Runner
	defaultRounds int
}

// Option configures a Console.
type Option func(*Console)

// WithDefaultRounds sets the round count used when the user just presses enter.
func WithDefaultRounds(n int) Option {
	return func(c *Console) { c.defaultRounds = n }
}

// New returns a Console.
func New(in io.Reader, out io.Writer, c debate.Clarifier, r Runner, opts ...Option) *Console {
	con := &Console{
		in:            bufio.NewScanner(in),
		out:           out,
		clarifier:     c,
		runner:        r,
		defaultRounds: debate.DefaultRounds,
	}
	for _, o := range opts {
		o(con)
	}
	con.defaultRounds = min(max(con.defaultRounds, debate.MinRounds), r.MaxRounds())
	return con
}

// Run performs one complete analysis. A failed save is reported on out and
// returned wrapped in [debate.ErrSaveFailed].
func (c *Console) Run(ctx context.Context) (*debate.Result, error) {
	sess := debate.NewSession()

	fmt.Fprintln(c.out, "💡 Startup Idea Critic")
	var questions []string
	for {
		title, err := c.prompt("Idea title: ")
		if err != nil {
			return nil, err
		}
		desc, err := c.prompt("Idea description: ")
		if err != nil {
			return nil, err
		}
		questions, err = sess.SubmitIdea(ctx, c.clarifier, title, desc)
		if errors.Is(err, debate.ErrIdeaIncomplete) {
			fmt.Fprintln(c.out, "Please provide both title and description.")
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	fmt.Fprintln(c.out, "\n🤔 Clarifying Questions")
	for i, q := range questions {
		answer, err := c.prompt(persona.CleanQuestion(q) + "\n> ")
		if err != nil {
			return nil, err
		}
		if err := sess.Answer(debate.QuestionID(i), answer); err != nil {
			return nil, err
		}
	}

	rounds, err := c.rounds()
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(c.out, "\n⚔️ Live Debate")
	res, err := c.runner.Run(ctx, sess, rounds, &sink{out: c.out})
	if err != nil && !errors.Is(err, debate.ErrSaveFailed) {
		return nil, err
	}
	return res, err
}

func (c *Console) rounds() (int, error) {
	maxRounds := c.runner.MaxRounds()
	for {
		line, err := c.prompt(fmt.Sprintf("Debate rounds [%d-%d, default %d]: ", debate.MinRounds, maxRounds, c.defaultRounds))
		if err != nil {
			return 0, err
		}
		if line == "" {
			return c.defaultRounds, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= debate.MinRounds && n <= maxRounds {
			return n, nil
		}
		fmt.Fprintf(c.out, "Enter a number between %d and %d.\n", debate.MinRounds, maxRounds)
	}
}

func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("console: read: %w", err)
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// sink prints turns as they stream.
type sink struct {
	out io.Writer
}

var _ debate.Sink = (*sink)(nil)

func (s *sink) TurnStarted(round int, p persona.Persona) {
	fmt.Fprintf(s.out, "\n── %s ──\n", debate.Label(round, p))
}

func (s *sink) Fragment(text string) {
	fmt.Fprint(s.out, text)
}

func (s *sink) TurnFinished(debate.Turn) {
	fmt.Fprintln(s.out)
}

func (s *sink) Saved(id string) {
	fmt.Fprintf(s.out, "\n✅ Analysis saved (id %s).\n", id)
}

func (s *sink) SaveFailed(err error) {
	fmt.Fprintf(s.out, "\n⚠️ Failed to save analysis: %v\n", err)
}

// PrintHistory writes every archived analysis to w, most recent first.
func PrintHistory(ctx context.Context, w io.Writer, store archive.Store, full bool) error {
	records, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("console: list analyses: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No analyses saved yet.")
		return nil
	}
	fmt.Fprintf(w, "📚 Analysis History (%d)\n", len(records))
	for _, r := range records {
		fmt.Fprintf(w, "\n%s  [%s]  %s\n", r.CreatedAt.Format("2006-01-02 15:04"), r.ID, r.IdeaTitle)
		if full {
			PrintRecord(w, r)
			continue
		}
		fmt.Fprintf(w, "  %s\n", r.Preview(200))
	}
	return nil
}

// PrintRecord writes the full report of one analysis.
func PrintRecord(w io.Writer, r archive.Record) {
	fmt.Fprintf(w, "\nIdea: %s\n%s\n", r.IdeaTitle, r.IdeaDescription)
	if len(r.ClarifyingAnswers) > 0 {
		fmt.Fprintln(w, "\nClarifying answers:")
		for _, id := range answerIDs(r.ClarifyingAnswers) {
			fmt.Fprintf(w, "  %s: %s\n", id, r.ClarifyingAnswers[id])
		}
	}
	fmt.Fprintf(w, "\nDebate:\n%s\n", r.DebateTranscript)
	fmt.Fprintf(w, "\nFinal summary:\n%s\n", r.FinalSummary)
	if r.MarketInsight != "" {
		fmt.Fprintf(w, "\nMarket insight:\n%s\n", r.MarketInsight)
	}
	if r.InvestorOutput != "" {
		fmt.Fprintf(w, "\nInvestor:\n%s\n", r.InvestorOutput)
	}
}

// answerIDs returns the answer keys with "Q<n>" ids in numeric order, so Q10
// follows Q9. Keys that are not question ids sort after them.
func answerIDs(answers map[string]string) []string {
	num := func(id string) int {
		n, err := strconv.Atoi(strings.TrimPrefix(id, "Q"))
		if err != nil || !strings.HasPrefix(id, "Q") {
			return -1
		}
		return n
	}
	return slices.SortedFunc(maps.Keys(answers), func(a, b string) int {
		na, nb := num(a), num(b)
		switch {
		case na >= 0 && nb >= 0 && na != nb:
			return na - nb
		case na >= 0 && nb < 0:
			return -1
		case na < 0 && nb >= 0:
			return 1
		}
		return strings.Compare(a, b)
	})
}
