package persona

import (
	"context"
	"iter"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/retrieval"
	"github.com/MrWong99/ideacritic/pkg/provider/llm"
)

// ModelErrorPrefix marks a fragment that reports a failed completion call.
const ModelErrorPrefix = "[Model Error] "

// MarketSource returns market snippets (or an error string) for a search
// query. [retrieval.Cache] is the production implementation.
type MarketSource interface {
	Fetch(ctx context.Context, query string) string
}

// Dispatcher fills persona templates and streams the model's answer.
//
// Dispatcher is safe for concurrent use; every Respond call performs an
// independent completion request.
type Dispatcher struct {
	llm          llm.Provider
	market       MarketSource
	providerName string
	temperature  float64
	metrics      *observe.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMarketSource sets the source of market data for the Market Analyst.
// Without one, the analyst is told that no search credential is configured.
func WithMarketSource(m MarketSource) Option {
	return func(d *Dispatcher) { d.market = m }
}

// WithProviderName sets the provider label recorded on metrics.
func WithProviderName(name string) Option {
	return func(d *Dispatcher) { d.providerName = name }
}

// WithTemperature sets the sampling temperature sent with every request.
// Zero keeps the provider default.
func WithTemperature(t float64) Option {
	return func(d *Dispatcher) { d.temperature = t }
}

// WithMetrics overrides the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher returns a Dispatcher that sends prompts to p.
func NewDispatcher(p llm.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{llm: p, providerName: "llm"}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Respond returns the lazily evaluated response of persona p. An empty last
// means there is no previous statement.
//
// Nothing happens until the sequence is ranged over; every iteration performs
// a new completion call. When the call fails, the sequence yields a single
// fragment starting with [ModelErrorPrefix] after whatever was already
// yielded, then ends. Breaking out of the loop early cancels the request.
func (d *Dispatcher) Respond(ctx context.Context, p Persona, ideaContext, last string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !p.Valid() {
			yield(ModelErrorPrefix + "unknown persona " + string(p))
			return
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		ctx, span := observe.StartSpan(ctx, "persona.respond",
			trace.WithAttributes(attribute.String("persona", string(p))),
		)
		defer span.End()

		var market string
		if p == MarketAnalyst {
			market = d.marketData(ctx, MarketQueryPrefix+ideaContext)
		}
		req := llm.Prompt(BuildPrompt(p, ideaContext, last, market))
		req.Temperature = d.temperature

		start := time.Now()
		defer func() {
			d.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(attribute.String("persona", string(p))))
		}()

		ch, err := d.llm.StreamCompletion(ctx, req)
		if err != nil {
			d.fail(ctx, p, err.Error())
			yield(ModelErrorPrefix + err.Error())
			return
		}

		for chunk := range ch {
			if chunk.FinishReason == llm.FinishReasonError {
				d.fail(ctx, p, chunk.Text)
				yield(ModelErrorPrefix + chunk.Text)
				return
			}
			if chunk.Text == "" {
				continue
			}
			if !yield(chunk.Text) {
				return
			}
		}
		d.metrics.RecordProviderRequest(ctx, d.providerName, "llm", "ok")
	}
}

func (d *Dispatcher) marketData(ctx context.Context, query string) string {
	if d.market == nil {
		return retrieval.MissingKeyMessage
	}
	return d.market.Fetch(ctx, query)
}

func (d *Dispatcher) fail(ctx context.Context, p Persona, msg string) {
	d.metrics.RecordProviderRequest(ctx, d.providerName, "llm", "error")
	d.metrics.RecordProviderError(ctx, d.providerName, "llm")
	observe.Logger(ctx).Warn("completion failed", "persona", string(p), "err", msg)
}

// Collect drains seq and returns the concatenated fragments.
func Collect(seq iter.Seq[string]) string {
	var sb strings.Builder
	for frag := range seq {
		sb.WriteString(frag)
	}
	return sb.String()
}
