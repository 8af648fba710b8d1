package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/persona"
)

const (
	startTimeout = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// startRequest is the first and only message a client sends on /ws/analysis.
type startRequest struct {
	Rounds  int               `json:"rounds"`
	Answers map[string]string `json:"answers"`
}

// event is one server-to-client message on /ws/analysis.
//
//	turn_started   Label, Persona, Round
//	fragment       Text
//	turn_finished  Label, Persona, Round, Text
//	saved          ID
//	save_failed    Error
//	error          Error
//	done
type event struct {
	Type    string `json:"type"`
	Label   string `json:"label,omitempty"`
	Persona string `json:"persona,omitempty"`
	Round   int    `json:"round,omitempty"`
	Text    string `json:"text,omitempty"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, sess, ok := s.lookupSession(r)
	if !ok {
		http.Error(w, "no analysis session; load / first", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	log := observe.Logger(ctx).With("session_id", id)

	req, err := readStart(ctx, conn)
	if err != nil {
		log.Debug("bad start message", "err", err)
		conn.Close(websocket.StatusUnsupportedData, "expected start message")
		return
	}

	ws := &wsSink{conn: conn}
	for qid, text := range req.Answers {
		if err := sess.Answer(qid, text); err != nil {
			ws.send(ctx, event{Type: "error", Error: err.Error()})
			conn.Close(websocket.StatusPolicyViolation, "invalid answers")
			return
		}
	}
	rounds := req.Rounds
	if rounds == 0 {
		rounds = s.DefaultRounds()
	}

	runCtx, done, err := s.sessions.RunContext(ctx, id)
	if err != nil {
		ws.send(ctx, event{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusTryAgainLater, "analysis already running")
		return
	}
	defer done()

	// The client never sends after the start message; reading detects a
	// closed tab and cancels the run.
	runCtx = conn.CloseRead(runCtx)
	runCtx, cancel := context.WithCancel(runCtx)
	defer cancel()
	ws.ctx, ws.cancel = runCtx, cancel

	log.Info("analysis started", "rounds", rounds)
	_, err = s.runner.Run(runCtx, sess, rounds, ws)
	switch {
	case err == nil, errors.Is(err, debate.ErrSaveFailed):
		ws.send(runCtx, event{Type: "done"})
		conn.Close(websocket.StatusNormalClosure, "analysis finished")
	case runCtx.Err() != nil:
		log.Info("analysis cancelled", "err", err)
	default:
		ws.send(runCtx, event{Type: "error", Error: err.Error()})
		conn.Close(websocket.StatusPolicyViolation, "analysis rejected")
	}
}

func readStart(ctx context.Context, conn *websocket.Conn) (startRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	if err != nil {
		return startRequest{}, err
	}
	if typ != websocket.MessageText {
		return startRequest{}, errors.New("start message must be text")
	}
	var req startRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return startRequest{}, err
	}
	return req, nil
}

// wsSink forwards debate progress as JSON text frames. The orchestrator calls
// it from a single goroutine. A failed write cancels the run.
type wsSink struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

var _ debate.Sink = (*wsSink)(nil)

func (w *wsSink) send(ctx context.Context, ev event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		observe.Logger(ctx).Debug("websocket write failed", "err", err)
		if w.cancel != nil {
			w.cancel()
		}
	}
}

func (w *wsSink) TurnStarted(round int, p persona.Persona) {
	w.send(w.ctx, event{Type: "turn_started", Label: debate.Label(round, p), Persona: string(p), Round: round})
}

func (w *wsSink) Fragment(text string) {
	w.send(w.ctx, event{Type: "fragment", Text: text})
}

func (w *wsSink) TurnFinished(t debate.Turn) {
	w.send(w.ctx, event{Type: "turn_finished", Label: t.Label(), Persona: string(t.Persona), Round: t.Round, Text: t.Text})
}

func (w *wsSink) Saved(id string) {
	w.send(w.ctx, event{Type: "saved", ID: id})
}

func (w *wsSink) SaveFailed(err error) {
	w.send(w.ctx, event{Type: "save_failed", Error: err.Error()})
}
