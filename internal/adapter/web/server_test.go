package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-agents/internal/adapter/eventlog"
	"realtime-agents/internal/adapter/transport"
	"realtime-agents/internal/domain"
	"realtime-agents/internal/infra/config"
	"realtime-agents/internal/usecase/eventbus"
	"realtime-agents/internal/usecase/roster"
	"realtime-agents/internal/usecase/viewstate"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	srv      *Server
	ts       *httptest.Server
	sessions *viewstate.Manager
	bus      *eventbus.Bus
	client   *http.Client
}

func newTestEnv(t *testing.T, factory viewstate.TransportFactory) *testEnv {
	t.Helper()
	logger := newTestLogger()

	reg, err := roster.NewRegistry("default", map[string]domain.Roster{
		"default": {{Name: "Agent A"}, {Name: "Agent B"}},
		"alt":     {{Name: "Agent C"}},
	})
	require.NoError(t, err)

	bus := eventbus.New(logger)
	events := eventlog.NewMemoryLog(100)
	eventlog.NewRecorder(bus, events, logger)
	sessions := viewstate.NewManager(bus, time.Hour, false, logger)
	if factory == nil {
		factory = transport.NewUnavailable
	}
	ctrl := viewstate.NewController(sessions, bus, factory, logger)

	srv := NewServer(Deps{
		Resolver:   roster.NewResolver(reg, logger),
		Controller: ctrl,
		Events:     events,
		Bus:        bus,
		Server:     config.ServerConfig{},
		Version:    "test",
	}, "127.0.0.1:0", logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Stop(context.Background())
		bus.Close()
	})

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return &testEnv{srv: srv, ts: ts, sessions: sessions, bus: bus, client: client}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) openSession(t *testing.T, query string) string {
	t.Helper()
	before := make(map[string]bool)
	for _, id := range e.sessions.IDs() {
		before[id] = true
	}
	resp := e.get(t, "/?"+query)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, id := range e.sessions.IDs() {
		if !before[id] {
			return id
		}
	}
	t.Fatal("page load opened no session")
	return ""
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPageRedirects(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path string
		want string
	}{
		{"/", "/?agentConfig=default"},
		{"/?agentConfig=bogus", "/?agentConfig=default"},
		{"/?agentConfig=bogus&query=hi+there", "/?agentConfig=default&query=hi+there"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := env.get(t, tt.path)
			assert.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.want, resp.Header.Get("Location"))
		})
	}
	assert.Equal(t, 0, env.sessions.Len(), "redirects open no session")
	assert.Equal(t, int64(3), env.srv.Metrics().Redirects.Load())
}

func TestPageFollowsRedirectOnce(t *testing.T) {
	env := newTestEnv(t, nil)

	var hops int
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		hops++
		return nil
	}}
	resp, err := client.Get(env.ts.URL + "/?agentConfig=nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, hops)
	assert.Equal(t, "default", resp.Request.URL.Query().Get("agentConfig"))
}

func TestPageRenders(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/?agentConfig=alt&query=%3Cb%3Ehi%3C%2Fb%3E")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))

	body := readBody(t, resp)
	assert.Contains(t, body, "Realtime API Agents")
	assert.Contains(t, body, `<option value="Agent C" selected>Agent C</option>`)
	assert.NotContains(t, body, "Agent A")
	assert.Contains(t, body, "&lt;b&gt;hi&lt;/b&gt;")
	assert.NotContains(t, body, "<b>hi</b>")
	assert.Contains(t, body, `data-status="DISCONNECTED"`)
	assert.Contains(t, body, `id="send" type="submit" disabled`)

	require.Equal(t, 1, env.sessions.Len())
	id := env.sessions.IDs()[0]
	assert.Contains(t, body, `data-session="`+id+`"`)
}

func TestPageLabels(t *testing.T) {
	env := newTestEnv(t, nil)

	body := readBody(t, env.get(t, "/?agentConfig=default"))
	assert.Contains(t, body, `Query: <code id="query"></code>`)
	assert.Contains(t, body, `<label for="agent">Scenario</label>`)

	body = readBody(t, env.get(t, "/?agentConfig=default&query=abc"))
	assert.Contains(t, body, `Query: <code id="query">abc</code>`)
}

func TestPageEachLoadIsNewSession(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.openSession(t, "agentConfig=default")
	b := env.openSession(t, "agentConfig=default")
	assert.NotEqual(t, a, b)
}

func TestPageReusesSessionAfterFormSelect(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default&query=q")

	form := url.Values{"name": {"Agent B"}}
	resp, err := env.client.PostForm(env.ts.URL+"/api/v1/sessions/"+id+"/select", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "default", loc.Query().Get("agentConfig"))
	assert.Equal(t, id, loc.Query().Get("session"))
	assert.Equal(t, "q", loc.Query().Get("query"))

	page := env.get(t, loc.String())
	require.Equal(t, http.StatusOK, page.StatusCode)
	body := readBody(t, page)
	assert.Contains(t, body, `<option value="Agent B" selected>Agent B</option>`)
	assert.Equal(t, 1, env.sessions.Len())

	// A session id from another roster is ignored.
	other := env.get(t, "/?agentConfig=alt&session="+id)
	require.Equal(t, http.StatusOK, other.StatusCode)
	assert.Equal(t, 2, env.sessions.Len())
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/static/console.js", "/static/console.css", "/static/logo.svg"} {
		resp := env.get(t, path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
	assert.Equal(t, http.StatusNotFound, env.get(t, "/static/missing.js").StatusCode)
}

func TestRostersAPI(t *testing.T) {
	env := newTestEnv(t, nil)

	var body RostersResponse
	decodeBody(t, env.get(t, "/api/v1/rosters"), &body)
	assert.Equal(t, "default", body.Default)
	assert.Equal(t, map[string][]string{
		"default": {"Agent A", "Agent B"},
		"alt":     {"Agent C"},
	}, body.Rosters)
}

func TestResolveAPI(t *testing.T) {
	env := newTestEnv(t, nil)

	var res roster.Resolution
	decodeBody(t, env.get(t, "/api/v1/resolve?agentConfig=alt"), &res)
	assert.False(t, res.Redirect)
	assert.Equal(t, "Agent C", res.InitialSelectedName)

	res = roster.Resolution{}
	decodeBody(t, env.get(t, "/api/v1/resolve?agentConfig=bogus&query=x"), &res)
	assert.True(t, res.Redirect)
	assert.Equal(t, "/?agentConfig=default&query=x", res.Location)
	assert.Equal(t, 0, env.sessions.Len())
}

func TestSessionAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")

	var view viewstate.View
	decodeBody(t, env.get(t, "/api/v1/sessions/"+id), &view)
	assert.Equal(t, id, view.ID)
	assert.Equal(t, "Agent A", view.SelectedName)
	assert.Equal(t, domain.StatusDisconnected, view.Status)

	resp := env.get(t, "/api/v1/sessions/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var errBody errorResponse
	decodeBody(t, resp, &errBody)
	assert.Contains(t, errBody.Error, "not found")
}

func TestSelectAPIJSON(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")

	post := func(body string) *http.Response {
		resp, err := env.client.Post(env.ts.URL+"/api/v1/sessions/"+id+"/select", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := post(`{"name":"Agent B"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view viewstate.View
	decodeBody(t, resp, &view)
	assert.Equal(t, "Agent B", view.SelectedName)
	assert.Equal(t, []string{"Agent A", "Agent B"}, view.Roster.Names())

	assert.Equal(t, http.StatusBadRequest, post(`{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`not json`).StatusCode)
}

func TestSessionEventsAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")

	resp, err := env.client.Post(env.ts.URL+"/api/v1/sessions/"+id+"/select", "application/json", strings.NewReader(`{"name":"Agent B"}`))
	require.NoError(t, err)
	resp.Body.Close()

	var events []domain.Event
	decodeBody(t, env.get(t, "/api/v1/sessions/"+id+"/events"), &events)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSessionCreated, events[0].Type)
	assert.Equal(t, domain.EventAgentSelected, events[1].Type)

	events = nil
	decodeBody(t, env.get(t, "/api/v1/sessions/"+id+"/events?limit=1"), &events)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventAgentSelected, events[0].Type)

	assert.Equal(t, http.StatusBadRequest, env.get(t, "/api/v1/sessions/"+id+"/events?limit=-1").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/api/v1/sessions/nope/events").StatusCode)
}

func TestStatusHealthMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.openSession(t, "agentConfig=default")
	env.get(t, "/")

	var status StatusResponse
	decodeBody(t, env.get(t, "/api/v1/status"), &status)
	assert.Equal(t, "realtime-agents", status.Name)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 1, status.Sessions.Active)
	assert.Equal(t, int64(1), status.Sessions.Total)
	assert.Equal(t, 2, status.Rosters.Count)
	assert.Equal(t, "default", status.Rosters.Default)
	assert.Equal(t, int64(1), status.Counters.Redirects)

	health := env.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, health.StatusCode)
	assert.Equal(t, "ok\n", readBody(t, health))

	metrics := readBody(t, env.get(t, "/metrics"))
	assert.Contains(t, metrics, "realtimeagents_sessions_active 1\n")
	assert.Contains(t, metrics, "realtimeagents_redirects_total 1\n")
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := env.client.Post(env.ts.URL+"/api/v1/rosters", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrSessionNotFound, http.StatusNotFound},
		{domain.ErrRPCMethodNotFound, http.StatusNotFound},
		{domain.NewDomainError("x", domain.ErrAgentNotInRoster, "Z"), http.StatusBadRequest},
		{domain.ErrRPCInvalidPayload, http.StatusBadRequest},
		{domain.WrapOp("connect", domain.ErrTransportUnavailable), http.StatusServiceUnavailable},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestServerStartStop(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := env.srv

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.BoundAddr() != "" }, 2*time.Second, 5*time.Millisecond)

	resp, err := http.Get("http://" + srv.BoundAddr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestServerStopConcurrent(t *testing.T) {
	env := newTestEnv(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, env.srv.Stop(context.Background()))
		}()
	}
	wg.Wait()
}
