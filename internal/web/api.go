package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrWong99/ideacritic/internal/archive"
	"github.com/MrWong99/ideacritic/internal/observe"
)

type listResponse struct {
	Count    int              `json:"count"`
	Analyses []archive.Record `json:"analyses"`
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	records, err := s.archive.List(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list analyses failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load analyses")
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Count: len(records), Analyses: records})
}

func (s *Server) handleAPIGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.archive.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, archive.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		observe.Logger(r.Context()).Error("get analysis failed", "err", err)
		writeError(w, http.StatusInternalServerError, "could not load analysis")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
