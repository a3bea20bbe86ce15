package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/viewstate"
)

type readyTransport struct {
	mu    sync.Mutex
	ready bool
}

func (t *readyTransport) Connect(context.Context, domain.AgentDescriptor) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = true
	return nil
}

func (t *readyTransport) Disconnect(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ready = false
	return nil
}

func (t *readyTransport) Ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ready
}

type wsClient struct {
	t      *testing.T
	conn   *websocket.Conn
	nextID uint64
}

func (e *testEnv) dial(t *testing.T, sessionID string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?session=" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, conn: conn}
}

// call sends a request and reads frames until its response, returning the
// response and the events that arrived before it.
func (c *wsClient) call(method string, payload any) (Frame, []domain.Event) {
	c.t.Helper()
	c.nextID++
	req := Frame{Type: FrameTypeRequest, ID: c.nextID, Method: method}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(c.t, err)
		req.Payload = raw
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(c.t, wsjson.Write(ctx, c.conn, req))

	var events []domain.Event
	for {
		var f Frame
		require.NoError(c.t, wsjson.Read(ctx, c.conn, &f))
		switch f.Type {
		case FrameTypeEvent:
			var ev domain.Event
			require.NoError(c.t, json.Unmarshal(f.Payload, &ev))
			events = append(events, ev)
		case FrameTypeResponse:
			require.Equal(c.t, c.nextID, f.ID)
			return f, events
		}
	}
}

func (c *wsClient) view(f Frame) viewstate.View {
	c.t.Helper()
	require.Empty(c.t, f.Error)
	var v viewstate.View
	require.NoError(c.t, json.Unmarshal(f.Payload, &v))
	return v
}

func eventTypes(events []domain.Event) []domain.EventType {
	out := make([]domain.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestWSRequiresSession(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusBadRequest, env.get(t, "/ws").StatusCode)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/ws?session=nope").StatusCode)
}

func TestWSSelectForwardsEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)

	resp, events := c.call("agent.select", map[string]string{"name": "Agent B"})
	view := c.view(resp)
	assert.Equal(t, "Agent B", view.SelectedName)
	assert.Equal(t, "default", view.ActiveKey)

	require.Equal(t, []domain.EventType{domain.EventAgentSelected}, eventTypes(events))
	assert.Equal(t, id, events[0].SessionID)
	assert.JSONEq(t, `{"name":"Agent B","previous":"Agent A"}`, string(events[0].Payload))
}

func TestWSEventsStayInSession(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.openSession(t, "agentConfig=default")
	b := env.openSession(t, "agentConfig=default")
	ca := env.dial(t, a)
	cb := env.dial(t, b)

	_, events := ca.call("agent.select", map[string]string{"name": "Agent B"})
	require.Len(t, events, 1)

	// b sees only its own events.
	_, events = cb.call("events.set_expanded", map[string]bool{"expanded": false})
	assert.Equal(t, []domain.EventType{domain.EventEventsExpanded}, eventTypes(events))
}

func TestWSToggleConnectionUnavailable(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)

	resp, events := c.call("session.toggle_connection", nil)
	assert.Contains(t, resp.Error, domain.ErrTransportUnavailable.Error())
	assert.Equal(t, []domain.EventType{
		domain.EventSessionStatus,
		domain.EventSessionStatus,
		domain.EventClientError,
	}, eventTypes(events))

	resp, _ = c.call("session.get", nil)
	view := c.view(resp)
	assert.Equal(t, domain.StatusDisconnected, view.Status)
	assert.False(t, view.CanSend)

	resp, _ = c.call("transcript.send", nil)
	assert.Contains(t, resp.Error, domain.ErrTransportUnavailable.Error())
}

func TestWSConnectedSessionCanSend(t *testing.T) {
	env := newTestEnv(t, func(string) domain.Transport { return &readyTransport{} })
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)

	view := c.view(first(c.call("session.toggle_connection", nil)))
	assert.Equal(t, domain.StatusConnected, view.Status)
	assert.True(t, view.CanSend)

	view = c.view(first(c.call("transcript.set_text", map[string]string{"text": "hello"})))
	assert.Equal(t, "hello", view.UserText)

	resp, events := c.call("transcript.send", nil)
	view = c.view(resp)
	assert.Empty(t, view.UserText)
	require.Equal(t, []domain.EventType{domain.EventTranscriptSent}, eventTypes(events))
	assert.JSONEq(t, `{"text":"hello"}`, string(events[0].Payload))

	view = c.view(first(c.call("toolbar.set_ptt", map[string]bool{"active": true})))
	assert.True(t, view.PTTActive)
	view = c.view(first(c.call("toolbar.talk_down", nil)))
	assert.True(t, view.PTTUserSpeaking)
	view = c.view(first(c.call("toolbar.talk_up", nil)))
	assert.False(t, view.PTTUserSpeaking)

	view = c.view(first(c.call("audio.set_playback", map[string]bool{"enabled": false})))
	assert.False(t, view.AudioPlaybackEnabled)

	view = c.view(first(c.call("session.toggle_connection", nil)))
	assert.Equal(t, domain.StatusDisconnected, view.Status)
	assert.False(t, view.CanSend)
}

func TestWSEventsList(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)

	resp, _ := c.call("events.list", map[string]int{"limit": 10})
	require.Empty(t, resp.Error)
	var events []domain.Event
	require.NoError(t, json.Unmarshal(resp.Payload, &events))
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSessionCreated, events[0].Type)
}

func TestWSBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)

	resp, _ := c.call("no.such.method", nil)
	assert.Equal(t, domain.ErrRPCMethodNotFound.Error(), resp.Error)

	for _, tc := range []struct {
		method  string
		payload any
	}{
		{"agent.select", nil},
		{"agent.select", map[string]int{"name": 1}},
		{"transcript.set_text", map[string]string{}},
		{"toolbar.set_ptt", map[string]string{"active": "yes"}},
		{"events.set_expanded", nil},
		{"events.list", map[string]int{"limit": -1}},
	} {
		resp, _ := c.call(tc.method, tc.payload)
		assert.Equal(t, domain.ErrRPCInvalidPayload.Error(), resp.Error, tc.method)
	}
}

func TestWSStopClosesClients(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.openSession(t, "agentConfig=default")
	c := env.dial(t, id)
	c.call("session.get", nil)
	require.Equal(t, int64(1), env.srv.Metrics().WSClients.Load())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		var f Frame
		readErr <- wsjson.Read(ctx, c.conn, &f)
	}()

	require.NoError(t, env.srv.Stop(context.Background()))

	err := <-readErr
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func first(f Frame, _ []domain.Event) Frame { return f }
