// Package debate runs the scripted multi-persona analysis of a startup idea.
//
// A [Session] walks through a fixed sequence of states: the founder submits an
// idea, answers clarifying questions, and an [Orchestrator] then runs N rounds
// of Optimist and Critic, a business analyst summary, a market analysis and an
// investor scorecard before persisting one [archive.Record]. Turns run strictly
// one after another; streamed text is forwarded to a [Sink] as it arrives.
package debate

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/persona"
)

const (
	// MinRounds is the smallest accepted round count.
	MinRounds = 1

	// DefaultMaxRounds is the largest accepted round count unless overridden
	// with [WithMaxRounds].
	DefaultMaxRounds = 5

	// DefaultRounds is the round count UIs preselect.
	DefaultRounds = 3

	// defaultScoreTolerance is how far the investor's weighted score may be
	// from the recomputed value before a warning is logged.
	defaultScoreTolerance = 1.0
)

// Responder streams a persona's answer. [persona.Dispatcher] is the production
// implementation.
type Responder interface {
	Respond(ctx context.Context, p persona.Persona, ideaContext, last string) iter.Seq[string]
}

// Result is everything a run produced.
type Result struct {
	Turns          []Turn
	Transcript     string
	FinalSummary   string
	MarketInsight  string
	InvestorOutput string

	// Record is the record handed to the archive. Its ID is set on success.
	Record archive.Record

	// RecordID is the archive id; empty unless the save succeeded.
	RecordID string

	// SaveErr is the persistence error when the state is [SaveFailed].
	SaveErr error
}

// Orchestrator sequences persona turns. It holds no per-run state and may be
// shared by any number of sessions.
type Orchestrator struct {
	responder      Responder
	store          archive.Store
	maxRounds      int
	scoreTolerance float64
	metrics        *observe.Metrics
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxRounds sets the largest accepted round count.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) { o.maxRounds = n }
}

// WithScoreTolerance sets the allowed distance between the investor's
// reported and recomputed weighted score before a diagnostic is logged.
func WithScoreTolerance(tol float64) Option {
	return func(o *Orchestrator) { o.scoreTolerance = tol }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New returns an Orchestrator that obtains turns from r and persists results
// in store.
func New(r Responder, store archive.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		responder:      r,
		store:          store,
		maxRounds:      DefaultMaxRounds,
		scoreTolerance: defaultScoreTolerance,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// MaxRounds returns the largest accepted round count.
func (o *Orchestrator) MaxRounds() int {
	return o.maxRounds
}

// Run executes the full analysis for s, which must be in [AwaitingAnswers].
//
// Rounds outside [MinRounds, MaxRounds] yield [ErrInvalidRounds] without
// touching the session. Model and search failures do not abort the run; they
// appear as marker text inside the affected turn. If ctx is cancelled the run
// stops before the next turn, nothing is persisted, and the session returns to
// [AwaitingAnswers]. When persisting fails, the returned Result is complete,
// the session ends in [SaveFailed] and the error wraps [ErrSaveFailed].
func (o *Orchestrator) Run(ctx context.Context, s *Session, rounds int, sink Sink) (*Result, error) {
	if rounds < MinRounds || rounds > o.maxRounds {
		return nil, fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidRounds, rounds, MinRounds, o.maxRounds)
	}
	if sink == nil {
		sink = NopSink{}
	}

	idea, questions, gen, err := s.begin()
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "debate.run",
		trace.WithAttributes(attribute.Int("rounds", rounds)),
	)
	defer span.End()
	log := observe.Logger(ctx)

	o.metrics.ActiveRuns.Add(ctx, 1)
	defer o.metrics.ActiveRuns.Add(context.WithoutCancel(ctx), -1)

	log.Info("analysis started", "title", idea.Title, "rounds", rounds)

	rn := &run{
		o:     o,
		s:     s,
		gen:   gen,
		sink:  sink,
		ideaC: ideaContext(idea, questions),
	}
	res, err := rn.execute(ctx, rounds)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.end(gen, AwaitingAnswers)
		log.Info("analysis aborted", "title", idea.Title, "turns", len(res.Turns), "err", err)
		return res, err
	}

	o.checkScorecard(ctx, res.InvestorOutput)

	rec := archive.Record{
		IdeaTitle:         idea.Title,
		IdeaDescription:   idea.Description,
		ClarifyingAnswers: maps.Clone(idea.Answers),
		DebateTranscript:  res.Transcript,
		FinalSummary:      res.FinalSummary,
		MarketInsight:     res.MarketInsight,
		InvestorOutput:    res.InvestorOutput,
		CreatedAt:         o.now().UTC(),
	}
	if rec.ClarifyingAnswers == nil {
		rec.ClarifyingAnswers = map[string]string{}
	}

	id, err := o.store.Insert(ctx, rec)
	if err != nil {
		rec.ID = ""
		res.Record = rec
		res.SaveErr = err
		s.end(gen, SaveFailed)
		o.metrics.RecordAnalysis(ctx, "save_failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		log.Error("failed to save analysis", "title", idea.Title, "err", err)
		sink.SaveFailed(err)
		return res, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	rec.ID = id
	res.Record = rec
	res.RecordID = id
	s.end(gen, Saved)
	o.metrics.RecordAnalysis(ctx, "saved")
	log.Info("analysis saved", "title", idea.Title, "id", id, "turns", len(res.Turns))
	sink.Saved(id)
	return res, nil
}

// checkScorecard logs when the investor output does not follow the requested
// format or its arithmetic is off. The output itself is kept as is.
func (o *Orchestrator) checkScorecard(ctx context.Context, text string) {
	log := observe.Logger(ctx)
	sc, ok := persona.ParseScorecard(text)
	if !ok {
		log.Debug("investor output has no complete scorecard")
		return
	}
	if !sc.Consistent(o.scoreTolerance) {
		log.Warn("investor weighted score does not match sub-scores",
			"reported", sc.Weighted, "expected", sc.Expected())
	}
	if !sc.VerdictKnown() {
		log.Warn("investor verdict outside allowed set", "verdict", sc.Verdict)
	}
	if len(sc.Recommendations) != 3 {
		log.Debug("investor recommendation count", "count", len(sc.Recommendations))
	}
}

// run carries the state of one Orchestrator.Run call.
type run struct {
	o     *Orchestrator
	s     *Session
	gen   uint64
	sink  Sink
	ideaC string
	tr    Transcript
}

func (r *run) execute(ctx context.Context, rounds int) (*Result, error) {
	res := &Result{}
	defer func() {
		res.Turns = r.tr.Turns()
		res.Transcript = r.tr.String()
	}()

	var critic string
	for round := 1; round <= rounds; round++ {
		r.s.transition(r.gen, Debating, round)

		optimist, err := r.turn(ctx, round, persona.Optimist, r.ideaC, critic)
		if err != nil {
			return res, err
		}
		critic, err = r.turn(ctx, round, persona.Critic, r.ideaC, optimist)
		if err != nil {
			return res, err
		}
	}

	r.s.transition(r.gen, Summarizing, 0)
	summary, err := r.turn(ctx, 0, persona.Summarizer, r.ideaC, r.tr.Raw())
	if err != nil {
		return res, err
	}
	res.FinalSummary = summary

	r.s.transition(r.gen, MarketAnalysis, 0)
	market, err := r.turn(ctx, 0, persona.MarketAnalyst, r.ideaC, summary)
	if err != nil {
		return res, err
	}
	res.MarketInsight = market

	r.s.transition(r.gen, InvestorScoring, 0)
	investorCtx := r.ideaC + "\n\nMarket Analyst insight:\n" + market
	investor, err := r.turn(ctx, 0, persona.Investor, investorCtx, market)
	if err != nil {
		return res, err
	}
	res.InvestorOutput = investor
	return res, nil
}

// turn runs one persona call, streams it to the sink and appends it to the
// transcript. It refuses to start once ctx is done.
func (r *run) turn(ctx context.Context, round int, p persona.Persona, ideaContext, last string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ctx, span := observe.StartSpan(ctx, "debate.turn",
		trace.WithAttributes(
			attribute.String("persona", string(p)),
			attribute.Int("round", round),
		),
	)
	defer span.End()

	r.sink.TurnStarted(round, p)
	var sb strings.Builder
	for frag := range r.o.responder.Respond(ctx, p, ideaContext, last) {
		sb.WriteString(frag)
		r.sink.Fragment(frag)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t := Turn{Round: round, Persona: p, Text: sb.String()}
	r.tr.Append(t)
	r.o.metrics.RecordTurn(ctx, string(p))
	observe.Logger(ctx).Debug("turn finished", "persona", string(p), "round", round, "chars", len(t.Text))
	r.sink.TurnFinished(t)
	return t.Text, nil
}
