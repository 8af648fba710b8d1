package debate

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/persona"
)

func TestSubmitIdea_RequiresTitleAndDescription(t *testing.T) {
	tests := []struct {
		name, title, desc string
	}{
		{"empty title", "", "AI litter detection app"},
		{"blank description", "EcoSnap", "   "},
		{"both empty", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSession()
			c := staticClarifier{"1. unused?"}
			if _, err := s.SubmitIdea(context.Background(), c, tc.title, tc.desc); !errors.Is(err, ErrIdeaIncomplete) {
				t.Errorf("err = %v, want ErrIdeaIncomplete", err)
			}
			if s.State() != AwaitingIdea || len(s.Questions()) != 0 {
				t.Errorf("session changed: state=%s questions=%q", s.State(), s.Questions())
			}
		})
	}
}

func TestSubmitIdea_SingleFallbackQuestion(t *testing.T) {
	s := NewSession()
	c := staticClarifier{"Error generating questions: 401"}
	qs, err := s.SubmitIdea(context.Background(), c, "EcoSnap", "AI litter detection app")
	if err != nil {
		t.Fatalf("SubmitIdea: %v", err)
	}
	if len(qs) != 1 || s.State() != AwaitingAnswers {
		t.Errorf("questions = %q, state = %s", qs, s.State())
	}
	if err := s.Answer("Q1", "skip"); err != nil {
		t.Errorf("Answer(Q1): %v", err)
	}
}

func TestSubmitIdea_WrongState(t *testing.T) {
	s := readySession(t)
	if _, err := s.SubmitIdea(context.Background(), staticClarifier{}, "a", "b"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestAnswer_Validation(t *testing.T) {
	s := readySession(t)
	for _, id := range []string{"Q0", "Q3", "1", "Qx", ""} {
		if err := s.Answer(id, "x"); !errors.Is(err, ErrUnknownQuestion) {
			t.Errorf("Answer(%q): err = %v, want ErrUnknownQuestion", id, err)
		}
	}
	if err := NewSession().Answer("Q1", "x"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Answer before idea: err = %v, want ErrInvalidState", err)
	}
}

func TestIdea_ReturnsCopy(t *testing.T) {
	s := readySession(t)
	idea := s.Idea()
	idea.Answers["Q1"] = "mutated"
	if got := s.Idea().Answers["Q1"]; got != "City councils" {
		t.Errorf("answer = %q, session aliased by copy", got)
	}
}

func TestReset(t *testing.T) {
	s := readySession(t)
	o := New(&scriptedResponder{}, archive.NewMemStore())
	if _, err := o.Run(context.Background(), s, 1, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	s.Reset()
	if s.State() != AwaitingIdea || s.Round() != 0 || len(s.Questions()) != 0 || s.Idea().Title != "" {
		t.Errorf("session not cleared: state=%s", s.State())
	}
	if _, err := s.SubmitIdea(context.Background(), staticClarifier{"1. q"}, "Next", "idea"); err != nil {
		t.Errorf("SubmitIdea after Reset: %v", err)
	}
}

func TestReset_DuringRun(t *testing.T) {
	s := readySession(t)
	r := &scriptedResponder{}
	r.onCall = func(c respondCall) {
		if c.Persona == persona.Summarizer {
			s.Reset()
		}
	}
	store := archive.NewMemStore()
	o := New(r, store)

	if _, err := o.Run(context.Background(), s, 1, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.State() != AwaitingIdea {
		t.Errorf("state = %s, want awaiting_idea after reset", s.State())
	}
}

func TestStateString(t *testing.T) {
	if got := SaveFailed.String(); got != "save_failed" {
		t.Errorf("SaveFailed.String() = %q", got)
	}
	if got := State(99).String(); got != "unknown(99)" {
		t.Errorf("State(99).String() = %q", got)
	}
}

func TestTurnLabel(t *testing.T) {
	tests := []struct {
		turn Turn
		want string
	}{
		{Turn{Round: 2, Persona: persona.Optimist}, "Round 2 - Optimist"},
		{Turn{Round: 2, Persona: persona.Critic}, "Round 2 - Critic"},
		{Turn{Persona: persona.Summarizer}, "Final Summary"},
		{Turn{Persona: persona.MarketAnalyst}, "Market Analyst"},
		{Turn{Persona: persona.Investor}, "Investor Bot"},
	}
	for _, tc := range tests {
		if got := tc.turn.Label(); got != tc.want {
			t.Errorf("Label() = %q, want %q", got, tc.want)
		}
	}
}
