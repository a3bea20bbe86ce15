package web

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/roster"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRPCMethodNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// RostersResponse is the JSON body returned by GET /api/v1/rosters.
type RostersResponse struct {
	Default string              `json:"default"`
	Rosters map[string][]string `json:"rosters"`
}

func (s *Server) handleRosters(w http.ResponseWriter, _ *http.Request) {
	reg := s.deps.Resolver.Registry()
	resp := RostersResponse{Default: reg.DefaultKey(), Rosters: make(map[string][]string, reg.Len())}
	for _, key := range reg.Keys() {
		agents, _ := reg.Get(key)
		resp.Rosters[key] = agents.Names()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleResolve reports what a page load with the same query would resolve to,
// without opening a session or redirecting.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	u := &url.URL{Path: "/", RawQuery: r.URL.RawQuery}
	writeJSON(w, http.StatusOK, s.deps.Resolver.Resolve(r.Context(), u))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Controller.View(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Controller.Sessions().Get(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, domain.NewDomainError("web.events", domain.ErrInvalidInput, "limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	events, err := s.deps.Events.List(r.Context(), id, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

type selectRequest struct {
	Name *string `json:"name"`
}

// handleSelect is the scenario selector's form fallback. JSON requests get the
// updated view back; form posts are redirected to the page for the same session.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	isJSON := ct == "application/json"

	var name string
	if isJSON {
		var req selectRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil || req.Name == nil {
			s.writeError(w, r, domain.NewDomainError("web.select", domain.ErrInvalidInput, "body must be {\"name\": string}"))
			return
		}
		name = *req.Name
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
		if err := r.ParseForm(); err != nil || !r.PostForm.Has("name") {
			s.writeError(w, r, domain.NewDomainError("web.select", domain.ErrInvalidInput, "form field name is required"))
			return
		}
		name = r.PostForm.Get("name")
	}

	view, err := s.deps.Controller.Select(r.Context(), id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if isJSON {
		writeJSON(w, http.StatusOK, view)
		return
	}
	q := url.Values{}
	q.Set(roster.ParamAgentConfig, view.ActiveKey)
	q.Set(paramSession, view.ID)
	if view.Query != "" {
		q.Set(roster.ParamQuery, view.Query)
	}
	http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
}
