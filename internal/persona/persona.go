// Package persona turns a persona identifier and an idea context into a
// streamed model response.
//
// Every persona is a fixed prompt template (see templates.go) filled with the
// caller's text verbatim and forwarded to an [llm.Provider]. The Market
// Analyst additionally grounds its prompt in web-search snippets obtained
// through a [MarketSource].
package persona

import (
	"fmt"
	"strings"
)

// Persona identifies one of the fixed debate roles.
type Persona string

const (
	// Optimist defends the idea and highlights opportunities.
	Optimist Persona = "optimist"

	// Critic challenges the Optimist's points.
	Critic Persona = "critic"

	// Summarizer is the business analyst who writes the final verdict over the
	// whole debate transcript.
	Summarizer Persona = "summarizer"

	// MarketAnalyst produces an evidence-backed market note from search results.
	MarketAnalyst Persona = "market_analyst"

	// Investor scores the idea and issues a verdict with recommendations.
	Investor Persona = "investor"
)

// All lists every persona in turn order.
var All = []Persona{Optimist, Critic, Summarizer, MarketAnalyst, Investor}

// Title returns the human-readable persona name used in prompts and UIs.
func (p Persona) Title() string {
	switch p {
	case Optimist:
		return "Optimist"
	case Critic:
		return "Critic"
	case Summarizer:
		return "Business Analyst"
	case MarketAnalyst:
		return "Market Analyst"
	case Investor:
		return "Investor"
	default:
		return string(p)
	}
}

// Valid reports whether p is one of the known personas.
func (p Persona) Valid() bool {
	switch p {
	case Optimist, Critic, Summarizer, MarketAnalyst, Investor:
		return true
	}
	return false
}

// Parse maps a persona name to a [Persona]. Matching ignores case and accepts
// the title form ("Market Analyst") as well as the identifier form.
func Parse(name string) (Persona, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch norm {
	case "business_analyst", "evaluator":
		return Summarizer, nil
	}
	p := Persona(norm)
	if !p.Valid() {
		return "", fmt.Errorf("persona: unknown persona %q", name)
	}
	return p, nil
}
