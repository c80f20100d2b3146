package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/state"
)

// maxRequestBodySize limits the size of incoming request bodies (64KB)
const maxRequestBodySize = 64 << 10

// StateResponse is the body of GET /api/patterns/{slug}/state.
type StateResponse struct {
	State    state.Snapshot `json:"state"`
	Defaults state.Defaults `json:"defaults"`
}

// openAPIViewer resolves the pattern and session for an API request,
// answering errors itself.
func (s *Server) openAPIViewer(w http.ResponseWriter, r *http.Request) (*viewer, bool) {
	p, ok := s.catalog.Get(r.PathValue("slug"))
	if !ok {
		writeJSONError(w, http.StatusNotFound, "pattern not found: "+r.PathValue("slug"))
		return nil, false
	}
	if p.IsStub() {
		writeJSONError(w, http.StatusNotFound, patternview.ErrNoContent.Error())
		return nil, false
	}
	v, err := s.openViewer(r.Context(), p, s.browserID(w, r))
	if err != nil {
		s.log.Error("failed to open session", zap.String("pattern", p.Slug), zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load pattern state")
		return nil, false
	}
	return v, true
}

func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	v, ok := s.openAPIViewer(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, StateResponse{
		State:    v.session.Snapshot(),
		Defaults: v.session.Defaults(),
	})
}

// serveAction is the fallback transport for clients without a socket. It
// answers with the same Message the socket would send.
func (s *Server) serveAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var act Action
	if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if act.Action == "" {
		writeJSONError(w, http.StatusBadRequest, "action is required")
		return
	}

	v, ok := s.openAPIViewer(w, r)
	if !ok {
		return
	}

	msg := s.apply(r.Context(), v, act)
	status := http.StatusOK
	if msg.Type == MessageError {
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, msg)
}
