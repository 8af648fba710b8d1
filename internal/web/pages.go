package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/debate"
	"github.com/MrWong99/ideacritic/internal/observe"
	"github.com/MrWong99/ideacritic/internal/persona"
)

const (
	sessionCookie = "ideacritic_session"
	previewLength = 200
)

// question is one clarifying question as shown on the page.
type question struct {
	ID     string
	Text   string
	Answer string
}

type layoutData struct {
	Active string
	Count  int
}

type newPageData struct {
	layoutData
	State         string
	Idea          debate.Idea
	Questions     []question
	Rounds        []int
	DefaultRounds int
	Error         string
}

type historyEntry struct {
	archive.Record
	Summary string
}

type historyPageData struct {
	layoutData
	Entries []historyEntry
}

type detailPageData struct {
	layoutData
	Record archive.Record
}

// session returns the caller's session, creating one and setting the cookie
// when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *debate.Session) {
	if id, sess, ok := s.lookupSession(r); ok {
		return id, sess
	}
	id, sess := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, sess
}

func (s *Server) lookupSession(r *http.Request) (string, *debate.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", nil, false
	}
	sess, ok := s.sessions.Get(c.Value)
	if !ok {
		return "", nil, false
	}
	return c.Value, sess, true
}

func (s *Server) layout(r *http.Request, active string) layoutData {
	n, err := s.archive.Count(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Warn("count analyses failed", "err", err)
	}
	return layoutData{Active: active, Count: n}
}

func (s *Server) handleNew(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(w, r)
	s.renderNew(w, r, sess, "", http.StatusOK)
}

func (s *Server) renderNew(w http.ResponseWriter, r *http.Request, sess *debate.Session, errMsg string, status int) {
	data := newPageData{
		layoutData:    s.layout(r, "new"),
		State:         sess.State().String(),
		Idea:          sess.Idea(),
		DefaultRounds: s.DefaultRounds(),
		Error:         errMsg,
	}
	if sess.Running() {
		data.State = "running"
	}
	for i, q := range sess.Questions() {
		id := debate.QuestionID(i)
		data.Questions = append(data.Questions, question{
			ID:     id,
			Text:   persona.CleanQuestion(q),
			Answer: data.Idea.Answers[id],
		})
	}
	for n := debate.MinRounds; n <= s.runner.MaxRounds(); n++ {
		data.Rounds = append(data.Rounds, n)
	}
	s.render(w, r, "new.html", status, data)
}

func (s *Server) handleIdea(w http.ResponseWriter, r *http.Request) {
	_, sess := s.session(w, r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	_, err := sess.SubmitIdea(r.Context(), s.clarifier, r.PostForm.Get("title"), r.PostForm.Get("description"))
	switch {
	case errors.Is(err, debate.ErrIdeaIncomplete):
		s.renderNew(w, r, sess, "Please provide both title and description.", http.StatusUnprocessableEntity)
		return
	case errors.Is(err, debate.ErrInvalidState):
		s.renderNew(w, r, sess, "An idea has already been submitted. Start a new analysis first.", http.StatusConflict)
		return
	case err != nil:
		observe.Logger(r.Context()).Error("submit idea failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if id, _, ok := s.lookupSession(r); ok {
		if err := s.sessions.Reset(id); err != nil {
			observe.Logger(r.Context()).Warn("reset session failed", "err", err)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.archive.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list analyses failed", "err", err)
		http.Error(w, "could not load analyses", http.StatusInternalServerError)
		return
	}
	data := historyPageData{layoutData: layoutData{Active: "history", Count: len(records)}}
	for _, rec := range records {
		data.Entries = append(data.Entries, historyEntry{Record: rec, Summary: rec.Preview(previewLength)})
	}
	s.render(w, r, "history.html", http.StatusOK, data)
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	rec, err := s.archive.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, archive.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("get analysis failed", "err", err)
		http.Error(w, "could not load analysis", http.StatusInternalServerError)
		return
	}
	s.render(w, r, "detail.html", http.StatusOK, detailPageData{
		layoutData: s.layout(r, "history"),
		Record:     rec,
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, status int, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages[page].ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("render page failed", "page", page, "err", err, "path", r.URL.Path)
	}
}
