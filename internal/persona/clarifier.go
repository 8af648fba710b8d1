package persona

import (
	"context"
	"regexp"
	"strings"

	"github.com/MrWong99/ideacritic/pkg/provider/llm"
)

var (
	numberedLine   = regexp.MustCompile(`^\d+\.`)
	numberedPrefix = regexp.MustCompile(`^\d+\.\s*`)
)

// Clarifier asks the model for the questions a mentor would put to a founder
// before the debate starts.
type Clarifier struct {
	llm llm.Provider
}

// NewClarifier returns a Clarifier backed by p.
func NewClarifier(p llm.Provider) *Clarifier {
	return &Clarifier{llm: p}
}

// Questions returns the numbered lines of the model's answer, trimmed. When the
// answer contains no numbered line, the whole trimmed answer is returned as a
// single question. A failed completion yields one pseudo-question carrying the
// error text so the flow can continue.
func (c *Clarifier) Questions(ctx context.Context, title, description string) []string {
	resp, err := c.llm.Complete(ctx, llm.Prompt(ClarifyPrompt(title, description)))
	if err != nil {
		return []string{"Error generating questions: " + err.Error()}
	}
	var raw string
	if resp != nil {
		raw = strings.TrimSpace(resp.Content)
	}
	return ParseQuestions(raw)
}

// ParseQuestions extracts numbered lines from raw.
func ParseQuestions(raw string) []string {
	raw = strings.TrimSpace(raw)
	var out []string
	for line := range strings.Lines(raw) {
		line = strings.TrimSpace(line)
		if numberedLine.MatchString(line) {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return []string{raw}
	}
	return out
}

// CleanQuestion strips the leading "N." numbering from q for display.
func CleanQuestion(q string) string {
	return numberedPrefix.ReplaceAllString(q, "")
}
