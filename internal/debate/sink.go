package debate

import "github.com/MrWong99/ideacritic/internal/persona"

// Sink receives the progress of a run as it happens. Calls are made from the
// goroutine running [Orchestrator.Run], in order.
type Sink interface {
	// TurnStarted is called before the first fragment of a turn.
	TurnStarted(round int, p persona.Persona)

	// Fragment delivers streamed text of the current turn.
	Fragment(text string)

	// TurnFinished is called with the complete turn.
	TurnFinished(t Turn)

	// Saved reports the id of the persisted record.
	Saved(id string)

	// SaveFailed reports a persistence error. The run's content is complete.
	SaveFailed(err error)
}

// NopSink ignores every event. Embed it to implement only some methods.
type NopSink struct{}

func (NopSink) TurnStarted(int, persona.Persona) {}
func (NopSink) Fragment(string)                  {}
func (NopSink) TurnFinished(Turn)                {}
func (NopSink) Saved(string)                     {}
func (NopSink) SaveFailed(error)                 {}

var _ Sink = NopSink{}
