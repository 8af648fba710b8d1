package persona

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Verdicts the Investor is instructed to choose from.
const (
	VerdictStrongBuy     = "Strong Buy"
	VerdictCaution       = "Consider with Caution"
	VerdictNotInvestable = "Not Investable Yet"
)

// Weights of the investor sub-scores; they sum to 1.
const (
	WeightMarketPotential = 0.30
	WeightInnovation      = 0.25
	WeightScalability     = 0.20
	WeightTeamFeasibility = 0.15
	WeightRisk            = 0.10
)

// Scorecard is the structured part of an Investor answer.
type Scorecard struct {
	MarketPotential float64
	Innovation      float64
	Scalability     float64
	TeamFeasibility float64
	Risk            float64

	// Weighted is the 0-100 score the model reported.
	Weighted float64

	Verdict         string
	Recommendations []string
}

// Expected is the weighted score implied by the sub-scores, on a 0-100 scale.
func (s Scorecard) Expected() float64 {
	return 10 * (s.MarketPotential*WeightMarketPotential +
		s.Innovation*WeightInnovation +
		s.Scalability*WeightScalability +
		s.TeamFeasibility*WeightTeamFeasibility +
		s.Risk*WeightRisk)
}

// Consistent reports whether the reported weighted score is within tolerance
// of [Scorecard.Expected].
func (s Scorecard) Consistent(tolerance float64) bool {
	return math.Abs(s.Expected()-s.Weighted) <= tolerance
}

// VerdictKnown reports whether Verdict is one of the three allowed values.
func (s Scorecard) VerdictKnown() bool {
	switch s.Verdict {
	case VerdictStrongBuy, VerdictCaution, VerdictNotInvestable:
		return true
	}
	return false
}

// scoreLine matches "<label>: <number>", tolerating markdown emphasis and
// list bullets around the label.
func scoreLine(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[\s*\-•]*` + label + `[^:\n]*:[\s*]*(\d+(?:\.\d+)?)`)
}

var (
	reMarket      = scoreLine(`Market Potential`)
	reInnovation  = scoreLine(`Innovation`)
	reScalability = scoreLine(`Scalability`)
	reTeam        = scoreLine(`Team Feasibility`)
	reRisk        = scoreLine(`Risk`)
	reWeighted    = scoreLine(`Weighted Score`)
	reVerdict     = regexp.MustCompile(`(?im)^[\s*\-•]*Verdict[\s*]*:[\s*]*(.+?)[\s*."]*$`)
	reRecsHeader  = regexp.MustCompile(`(?im)^[\s*\-•]*Recommendations[\s*]*:`)
)

// ParseScorecard extracts the scorecard from an Investor answer. ok is false
// when any sub-score or the weighted score is missing. The parse is lenient
// and only used for diagnostics; the answer text itself is never altered.
func ParseScorecard(text string) (Scorecard, bool) {
	var s Scorecard
	fields := []struct {
		re  *regexp.Regexp
		dst *float64
	}{
		{reMarket, &s.MarketPotential},
		{reInnovation, &s.Innovation},
		{reScalability, &s.Scalability},
		{reTeam, &s.TeamFeasibility},
		{reRisk, &s.Risk},
		{reWeighted, &s.Weighted},
	}
	ok := true
	for _, f := range fields {
		m := f.re.FindStringSubmatch(text)
		if m == nil {
			ok = false
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			ok = false
			continue
		}
		*f.dst = v
	}

	if m := reVerdict.FindStringSubmatch(text); m != nil {
		s.Verdict = strings.Trim(strings.TrimSpace(m[1]), `"*`)
	}
	if loc := reRecsHeader.FindStringIndex(text); loc != nil {
		for line := range strings.Lines(text[loc[1]:]) {
			line = strings.TrimSpace(line)
			if numberedLine.MatchString(line) {
				s.Recommendations = append(s.Recommendations, CleanQuestion(line))
			}
		}
	}
	return s, ok
}
