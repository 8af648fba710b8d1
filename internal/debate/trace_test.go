package debate

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/persona"
	"github.com/MrWong99/ideacritic/pkg/provider/llm"
	llmmock "github.com/MrWong99/ideacritic/pkg/provider/llm/mock"
)

// recordSpans installs an in-memory tracer provider as the global provider
// for the duration of the test.
func recordSpans(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func attrOf(s tracetest.SpanStub, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestRun_SpansNestRunTurnRespond(t *testing.T) {
	exp := recordSpans(t)

	llmp := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "ok", FinishReason: "stop"}}}
	o := New(persona.NewDispatcher(llmp), archive.NewMemStore())

	const rounds = 2
	if _, err := o.Run(context.Background(), readySession(t), rounds, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exp.GetSpans()
	var (
		runSpan  tracetest.SpanStub
		turns    []tracetest.SpanStub
		responds = make(map[string]tracetest.SpanStub)
	)
	for _, s := range spans {
		switch s.Name {
		case "debate.run":
			runSpan = s
		case "debate.turn":
			turns = append(turns, s)
		case "persona.respond":
			responds[s.Parent.SpanID().String()] = s
		}
	}

	if !runSpan.SpanContext.IsValid() {
		t.Fatal("no debate.run span recorded")
	}
	if v, ok := attrOf(runSpan, "rounds"); !ok || v.AsInt64() != rounds {
		t.Errorf("debate.run rounds = %v, want %d", v.Emit(), rounds)
	}
	if got, want := len(turns), 2*rounds+3; got != want {
		t.Fatalf("debate.turn spans = %d, want %d", got, want)
	}

	seen := make(map[persona.Persona]int)
	for _, turn := range turns {
		if turn.Parent.SpanID() != runSpan.SpanContext.SpanID() {
			t.Errorf("debate.turn parent = %s, want debate.run %s", turn.Parent.SpanID(), runSpan.SpanContext.SpanID())
		}
		pv, ok := attrOf(turn, "persona")
		if !ok {
			t.Errorf("debate.turn missing persona attribute")
			continue
		}
		p := persona.Persona(pv.AsString())
		seen[p]++

		rv, ok := attrOf(turn, "round")
		if !ok {
			t.Errorf("debate.turn %s missing round attribute", p)
		}
		if (p == persona.Optimist || p == persona.Critic) && int(rv.AsInt64()) != seen[p] {
			t.Errorf("debate.turn %s round = %d, want %d", p, rv.AsInt64(), seen[p])
		}

		resp, ok := responds[turn.SpanContext.SpanID().String()]
		if !ok {
			t.Errorf("debate.turn %s has no persona.respond child", p)
			continue
		}
		if v, _ := attrOf(resp, "persona"); v.AsString() != string(p) {
			t.Errorf("persona.respond persona = %q, want %q", v.AsString(), p)
		}
	}
	if seen[persona.Optimist] != rounds || seen[persona.Critic] != rounds {
		t.Errorf("turn spans per persona = %v", seen)
	}
	for _, p := range []persona.Persona{persona.Summarizer, persona.MarketAnalyst, persona.Investor} {
		if seen[p] != 1 {
			t.Errorf("turn spans for %s = %d, want 1", p, seen[p])
		}
	}
}
