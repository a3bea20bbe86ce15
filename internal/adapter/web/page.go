package web

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/roster"
	"realtime-agents/internal/usecase/viewstate"
)

// paramSession carries the session id across the selector's form fallback so
// the redirected page shows the same session instead of opening a new one.
const paramSession = "session"

var pageTemplate = template.Must(template.ParseFS(assets, "templates/console.html"))

type pageData struct {
	Title        string
	View         viewstate.View
	ReloadURL    string
	WSPath       string
	SelectAction string
	Scenarios    []scenarioLink
}

type scenarioLink struct {
	Key    string
	URL    string
	Active bool
}

// handlePage resolves agentConfig and renders the console. A missing or unknown
// key is answered with a redirect and no session is opened.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := s.deps.Resolver.Resolve(ctx, r.URL)
	if res.Redirect {
		s.deps.Bus.Publish(ctx, domain.NewEvent(domain.EventSessionRedirected, "", map[string]string{
			"requested": r.URL.Query().Get(roster.ParamAgentConfig),
			"location":  res.Location,
		}))
		http.Redirect(w, r, res.Location, http.StatusFound)
		return
	}

	view, ok := s.existingView(r, res)
	if !ok {
		st, err := s.deps.Controller.Sessions().Open(ctx, res, r.URL.Query().Get(roster.ParamQuery))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if view, err = s.deps.Controller.View(st.ID()); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	data := pageData{
		Title:        "Realtime API Agents",
		View:         view,
		ReloadURL:    reloadURL(r.URL),
		WSPath:       "/ws?" + url.Values{paramSession: {view.ID}}.Encode(),
		SelectAction: "/api/v1/sessions/" + url.PathEscape(view.ID) + "/select",
		Scenarios:    s.scenarios(res.ActiveKey),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

// existingView returns the snapshot of the session named by the session
// parameter when it is live and belongs to the resolved roster.
func (s *Server) existingView(r *http.Request, res roster.Resolution) (viewstate.View, bool) {
	id := r.URL.Query().Get(paramSession)
	if id == "" {
		return viewstate.View{}, false
	}
	st, err := s.deps.Controller.Sessions().Get(id)
	if err != nil || st.ActiveKey() != res.ActiveKey {
		return viewstate.View{}, false
	}
	st.Touch()
	view, err := s.deps.Controller.View(id)
	return view, err == nil
}

func (s *Server) scenarios(active string) []scenarioLink {
	keys := s.deps.Resolver.Registry().Keys()
	out := make([]scenarioLink, len(keys))
	for i, k := range keys {
		out[i] = scenarioLink{
			Key:    k,
			URL:    "/?" + url.Values{roster.ParamAgentConfig: {k}}.Encode(),
			Active: k == active,
		}
	}
	return out
}

// reloadURL is the current page URL without the session parameter, so that
// following it starts a fresh page load.
func reloadURL(u *url.URL) string {
	q := u.Query()
	q.Del(paramSession)
	loc := url.URL{Path: u.Path, RawQuery: q.Encode()}
	return loc.String()
}
