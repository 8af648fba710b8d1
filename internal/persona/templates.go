package persona

import "strings"

// MarketQueryPrefix is prepended to the idea context to form the web-search
// query issued for the Market Analyst.
const MarketQueryPrefix = "Recent market trends, competitors, pricing, funding signals for: "

// Placeholders substituted into the templates below.
const (
	phIdea   = "{idea}"
	phLast   = "{last}"
	phRole   = "{persona}"
	phMarket = "{market}"
	phTitle  = "{title}"
	phDesc   = "{description}"
)

const openingTemplate = `You are a startup {persona}. Analyze the idea: '{idea}' in 2–3 concise bullet points. Be specific and actionable.`

const rebuttalTemplate = `You are a startup {persona}. The idea: '{idea}'. The last statement was: '{last}'. Respond directly in 2–3 clear points.`

const summaryTemplate = `
You are an expert Business Analyst. Given the following discussion transcript for '{idea}', write:

- A short actionable paragraph (3-4 sentences)
- Then 3 key actionable bullet points

Transcript:
{last}
`

const marketTemplate = `
You are a Market Analyst. Use the following retrieved market snippets (RAG) to produce an evidence-backed summary.

Startup Idea:
{idea}

Recent Market Data:
{market}

Task:
- Provide a short evidence-based summary (3-5 lines).
- Highlight competitor signals, funding/traction notes, market growth or saturation, and GTM/pricing cues.
- Keep output factual and concise.
`

const investorTemplate = `
You are an experienced early-stage investor. Evaluate the following startup idea and provide:

1) Five sub-scores on a 0-10 scale (integers or one decimal) with a one-line justification each:
   - Market Potential
   - Innovation
   - Scalability
   - Team Feasibility
   - Risk (10 = very low risk, 0 = very high risk)

2) Compute a weighted overall score (0-100) using weights:
   Market Potential 30%, Innovation 25%, Scalability 20%, Team Feasibility 15%, Risk 10%

3) Provide a short verdict (choose one: "Strong Buy", "Consider with Caution", "Not Investable Yet")

4) Give 3 concise next-step recommendations for the founder.

Startup Idea:
{idea}

Format strictly as:
Market Potential: <score> — <justification>
Innovation: <score> — <justification>
Scalability: <score> — <justification>
Team Feasibility: <score> — <justification>
Risk: <score> — <justification>
Weighted Score (0-100): <score>
Verdict: <verdict>
Recommendations:
1. <rec1>
2. <rec2>
3. <rec3>
`

const clarifyTemplate = `
You are a practical startup mentor. A founder provided this idea:
Title: {title}
Description: {description}

Generate exactly 3–5 clarifying questions to better understand this idea.
- Output exactly as a numbered list:
  1. <question>
  2. <question>
  ...
- Focus on market, target segment, feasibility, differentiation, and execution.
- Do not add extra text.
`

// fill substitutes the given placeholder/value pairs into tmpl in a single
// pass. Substituted text is never rescanned, so user input containing a
// placeholder is sent as-is.
func fill(tmpl string, pairs ...string) string {
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// BuildPrompt returns the filled prompt for p. marketData is only used by the
// Market Analyst. An empty last selects the opening framing for the Optimist
// and Critic.
func BuildPrompt(p Persona, ideaContext, last, marketData string) string {
	switch p {
	case Summarizer:
		return fill(summaryTemplate, phIdea, ideaContext, phLast, last)
	case MarketAnalyst:
		return fill(marketTemplate, phIdea, ideaContext, phMarket, marketData)
	case Investor:
		return fill(investorTemplate, phIdea, ideaContext)
	}
	if last == "" {
		return fill(openingTemplate, phRole, p.Title(), phIdea, ideaContext)
	}
	return fill(rebuttalTemplate, phRole, p.Title(), phIdea, ideaContext, phLast, last)
}

// ClarifyPrompt returns the mentor prompt asking for clarifying questions.
func ClarifyPrompt(title, description string) string {
	return fill(clarifyTemplate, phTitle, title, phDesc, description)
}
