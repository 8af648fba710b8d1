// Package archive stores completed analyses.
//
// A [Record] is written exactly once, when a debate run reaches its save step,
// and is never modified afterwards. Stores list records newest first.
package archive

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by [Store.Get] when no record has the given id.
	ErrNotFound = errors.New("archive: record not found")

	// ErrInvalidID is returned by [Store.Insert] when a caller-supplied id
	// does not have the form the backend uses for its ids.
	ErrInvalidID = errors.New("archive: invalid record id")

	// ErrDuplicateID is returned by [Store.Insert] when a record with the
	// caller-supplied id already exists.
	ErrDuplicateID = errors.New("archive: duplicate record id")
)

// Record is one persisted analysis. Field tags follow the document layout of
// the debates collection.
type Record struct {
	ID                string            `json:"id" bson:"-"`
	IdeaTitle         string            `json:"idea_title" bson:"idea_title"`
	IdeaDescription   string            `json:"idea_description" bson:"idea_description"`
	ClarifyingAnswers map[string]string `json:"clarifying_answers" bson:"clarifying_answers"`
	DebateTranscript  string            `json:"debate_transcript" bson:"debate_transcript"`
	FinalSummary      string            `json:"final_summary" bson:"final_summary"`
	MarketInsight     string            `json:"market_insight,omitempty" bson:"market_insight,omitempty"`
	InvestorOutput    string            `json:"investor_output,omitempty" bson:"investor_output,omitempty"`
	CreatedAt         time.Time         `json:"created_at" bson:"created_at"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.ClarifyingAnswers = maps.Clone(r.ClarifyingAnswers)
	return r
}

// Preview returns the final summary shortened to at most n runes, with "..."
// appended when it was cut.
func (r Record) Preview(n int) string {
	s := strings.TrimSpace(r.FinalSummary)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// Store persists analysis records.
//
// Implementations must be safe for concurrent use. Insert keeps a non-empty
// r.ID and assigns one otherwise. It sets CreatedAt when zero and stores a
// copy so later changes to the caller's record are not visible.
type Store interface {
	// Insert persists r and returns its id. A caller-supplied id must match
	// the backend's id form ([ErrInvalidID]) and be unused ([ErrDuplicateID]).
	Insert(ctx context.Context, r Record) (string, error)

	// List returns every record ordered by CreatedAt, newest first.
	List(ctx context.Context) ([]Record, error)

	// Get returns the record with the given id or [ErrNotFound].
	Get(ctx context.Context, id string) (Record, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}
