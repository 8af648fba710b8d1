package debate

import (
	"context"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync"

	"github.com/MrWong99/ideacritic/internal/persona"
)

// State is the position of a [Session] in the analysis flow.
type State int

const (
	// AwaitingIdea is the initial state: no idea submitted yet.
	AwaitingIdea State = iota
	// AwaitingAnswers holds a submitted idea and its clarifying questions.
	AwaitingAnswers
	// Debating runs the Optimist/Critic rounds; see [Session.Round].
	Debating
	// Summarizing runs the business analyst summary.
	Summarizing
	// MarketAnalysis runs the market analyst turn.
	MarketAnalysis
	// InvestorScoring runs the investor turn.
	InvestorScoring
	// Saved is terminal: the analysis was persisted.
	Saved
	// SaveFailed is terminal: every turn completed but persisting failed.
	SaveFailed
)

// String implements [fmt.Stringer].
func (s State) String() string {
	switch s {
	case AwaitingIdea:
		return "awaiting_idea"
	case AwaitingAnswers:
		return "awaiting_answers"
	case Debating:
		return "debating"
	case Summarizing:
		return "summarizing"
	case MarketAnalysis:
		return "market_analysis"
	case InvestorScoring:
		return "investor_scoring"
	case Saved:
		return "saved"
	case SaveFailed:
		return "save_failed"
	default:
		return "unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Idea is the founder's input. It is frozen once a run starts.
type Idea struct {
	Title       string
	Description string

	// Answers maps question ids ("Q1", "Q2", ...) to free-text answers.
	Answers map[string]string
}

// Clarifier produces clarifying questions for an idea. [persona.Clarifier]
// is the production implementation.
type Clarifier interface {
	Questions(ctx context.Context, title, description string) []string
}

// QuestionID returns the answer key of the i-th (0-based) question.
func QuestionID(i int) string {
	return "Q" + strconv.Itoa(i+1)
}

// Session is the per-user state of one analysis. All methods are safe for
// concurrent use; at most one [Orchestrator.Run] may be active at a time.
type Session struct {
	mu        sync.Mutex
	state     State
	round     int
	idea      Idea
	questions []string
	running   bool

	// gen is bumped by Reset so a run that is still finishing cannot move a
	// fresh session out of AwaitingIdea.
	gen uint64
}

// NewSession returns a Session in [AwaitingIdea].
func NewSession() *Session {
	return &Session{}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Round returns the current round while [Debating], otherwise the last round
// that ran (0 before any).
func (s *Session) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Running reports whether a run is in progress.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Idea returns a copy of the submitted idea.
func (s *Session) Idea() Idea {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea := s.idea
	idea.Answers = maps.Clone(s.idea.Answers)
	return idea
}

// Questions returns a copy of the clarifying questions as produced by the
// model (numbering included; see [persona.CleanQuestion]).
func (s *Session) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// SubmitIdea validates title and description, asks c for clarifying
// questions and moves the session to [AwaitingAnswers]. Both fields must be
// non-blank; otherwise [ErrIdeaIncomplete] is returned and the session is
// unchanged.
func (s *Session) SubmitIdea(ctx context.Context, c Clarifier, title, description string) ([]string, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return nil, ErrIdeaIncomplete
	}

	s.mu.Lock()
	if s.state != AwaitingIdea {
		st := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: submit idea in state %s", ErrInvalidState, st)
	}
	gen := s.gen
	s.mu.Unlock()

	questions := c.Questions(ctx, title, description)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != AwaitingIdea {
		return nil, fmt.Errorf("%w: session changed while generating questions", ErrInvalidState)
	}
	s.idea = Idea{Title: title, Description: description, Answers: make(map[string]string)}
	s.questions = append([]string(nil), questions...)
	s.state = AwaitingAnswers
	return append([]string(nil), questions...), nil
}

// Answer records the answer to question id ("Q1".."Qn").
func (s *Session) Answer(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != AwaitingAnswers || s.running {
		return fmt.Errorf("%w: answer in state %s", ErrInvalidState, s.state)
	}
	if !s.knownQuestion(id) {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, id)
	}
	s.idea.Answers[id] = text
	return nil
}

func (s *Session) knownQuestion(id string) bool {
	n, err := strconv.Atoi(strings.TrimPrefix(id, "Q"))
	if err != nil || !strings.HasPrefix(id, "Q") {
		return false
	}
	return n >= 1 && n <= len(s.questions)
}

// Reset discards the idea, questions and answers and returns the session to
// [AwaitingIdea]. A run still in flight keeps going but no longer affects
// the session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.state = AwaitingIdea
	s.round = 0
	s.idea = Idea{}
	s.questions = nil
	s.running = false
}

// IdeaContext renders the description and the clarifying Q&A in the form
// every persona prompt receives.
func (s *Session) IdeaContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ideaContext(s.idea, s.questions)
}

func ideaContext(idea Idea, questions []string) string {
	var sb strings.Builder
	sb.WriteString(idea.Description)
	sb.WriteString("\n\n---Clarifying Details---\n")
	for i, q := range questions {
		answer, ok := idea.Answers[QuestionID(i)]
		if !ok || strings.TrimSpace(answer) == "" {
			answer = "Not answered."
		}
		fmt.Fprintf(&sb, "Q: %s\nA: %s\n", persona.CleanQuestion(q), answer)
	}
	return sb.String()
}

// begin marks the session as running and returns a frozen snapshot.
func (s *Session) begin() (Idea, []string, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return Idea{}, nil, 0, ErrRunInProgress
	}
	if s.state != AwaitingAnswers {
		return Idea{}, nil, 0, fmt.Errorf("%w: run in state %s", ErrInvalidState, s.state)
	}
	s.running = true
	idea := s.idea
	idea.Answers = maps.Clone(s.idea.Answers)
	return idea, append([]string(nil), s.questions...), s.gen, nil
}

// transition moves the session to st unless it was reset since gen.
func (s *Session) transition(gen uint64, st State, round int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.state = st
	if round > 0 {
		s.round = round
	}
}

// end clears the running flag; final is applied unless the session was reset.
func (s *Session) end(gen uint64, final State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.running = false
	s.state = final
}
