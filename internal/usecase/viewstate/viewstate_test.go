package viewstate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/eventbus"
	"realtime-agents/internal/usecase/roster"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func exampleResolution() roster.Resolution {
	return roster.Resolution{
		ActiveKey:           "default",
		Roster:              domain.Roster{{Name: "Agent A"}, {Name: "Agent B"}},
		InitialSelectedName: "Agent A",
	}
}

// fakeTransport records calls and can be told to fail Connect.
type fakeTransport struct {
	mu          sync.Mutex
	connectErr  error
	ready       bool
	connected   []string
	disconnects int
}

func (f *fakeTransport) Connect(_ context.Context, agent domain.AgentDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = append(f.connected, agent.Name)
	f.ready = true
	return nil
}

func (f *fakeTransport) Disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.ready = false
	return nil
}

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

// blockingTransport holds Connect open until release is closed.
type blockingTransport struct {
	started chan struct{}
	release chan struct{}

	mu          sync.Mutex
	ready       bool
	disconnects int
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{started: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingTransport) Connect(context.Context, domain.AgentDescriptor) error {
	close(b.started)
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ready = true
	return nil
}

func (b *blockingTransport) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects++
	b.ready = false
	return nil
}

func (b *blockingTransport) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *blockingTransport) disconnectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.disconnects
}

// eventRecorder collects every event published on a bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) handle(_ context.Context, e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type harness struct {
	bus       *eventbus.Bus
	manager   *Manager
	ctrl      *Controller
	transport *fakeTransport
	events    *eventRecorder
}

func newHarness(t *testing.T, strict bool) *harness {
	t.Helper()
	bus := eventbus.New(newTestLogger())
	t.Cleanup(bus.Close)
	rec := &eventRecorder{}
	bus.SubscribeAll(rec.handle)

	ft := &fakeTransport{}
	mgr := NewManager(bus, time.Hour, strict, newTestLogger())
	ctrl := NewController(mgr, bus, func(string) domain.Transport { return ft }, newTestLogger())
	return &harness{bus: bus, manager: mgr, ctrl: ctrl, transport: ft, events: rec}
}

func (h *harness) open(t *testing.T) string {
	t.Helper()
	st, err := h.manager.Open(context.Background(), exampleResolution(), "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st.ID()
}
