package debate

import (
	"strconv"
	"strings"

	"github.com/MrWong99/ideacritic/internal/persona"
)

// Turn is one finished persona response. Round is 0 for turns outside the
// Optimist/Critic rounds.
type Turn struct {
	Round   int             `json:"round,omitempty"`
	Persona persona.Persona `json:"persona"`
	Text    string          `json:"text"`
}

// Label returns the transcript speaker label of a turn.
func Label(round int, p persona.Persona) string {
	switch p {
	case persona.Summarizer:
		return "Final Summary"
	case persona.MarketAnalyst:
		return "Market Analyst"
	case persona.Investor:
		return "Investor Bot"
	}
	return "Round " + strconv.Itoa(round) + " - " + p.Title()
}

// Label returns the transcript speaker label of t.
func (t Turn) Label() string {
	return Label(t.Round, t.Persona)
}

// Transcript is the append-only list of turns of one run.
type Transcript struct {
	turns []Turn
	text  strings.Builder
}

// Append adds t at the end.
func (tr *Transcript) Append(t Turn) {
	tr.turns = append(tr.turns, t)
	tr.text.WriteString("\n")
	tr.text.WriteString(t.Label())
	tr.text.WriteString(": ")
	tr.text.WriteString(t.Text)
}

// Turns returns a copy of the turns in execution order.
func (tr *Transcript) Turns() []Turn {
	return append([]Turn(nil), tr.turns...)
}

// Len returns the number of turns.
func (tr *Transcript) Len() int {
	return len(tr.turns)
}

// Raw returns the newline-prefixed serialisation fed to the summarizer.
func (tr *Transcript) Raw() string {
	return tr.text.String()
}

// String returns the serialisation with surrounding whitespace removed, as it
// is stored in the archive.
func (tr *Transcript) String() string {
	return strings.TrimSpace(tr.text.String())
}
