package web

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"realtime-agents/internal/domain"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Sessions      SessionStatus `json:"sessions"`
	Rosters       RosterStatus  `json:"rosters"`
	Gateway       GatewayStatus `json:"gateway"`
	Counters      CounterStatus `json:"counters"`
}

// SessionStatus holds console session counts.
type SessionStatus struct {
	Active int   `json:"active"`
	Total  int64 `json:"total"`
}

// RosterStatus describes the roster registry.
type RosterStatus struct {
	Count   int    `json:"count"`
	Default string `json:"default"`
}

// GatewayStatus holds WebSocket client counts.
type GatewayStatus struct {
	Clients int64 `json:"clients"`
}

// CounterStatus holds event counters.
type CounterStatus struct {
	Redirects    int64 `json:"redirects"`
	Selections   int64 `json:"selections"`
	ClientErrors int64 `json:"client_errors"`
	EventsSent   int64 `json:"events_sent"`
	EventsDrop   int64 `json:"events_dropped"`
}

// Metrics tracks counters for the status API and Prometheus metrics.
type Metrics struct {
	SessionsTotal atomic.Int64
	Redirects     atomic.Int64
	Selections    atomic.Int64
	ClientErrors  atomic.Int64
	WSClients     atomic.Int64
	FramesSent    atomic.Int64
	FramesDropped atomic.Int64
}

func (m *Metrics) subscribe(bus domain.EventBus) []func() {
	count := func(c *atomic.Int64) domain.EventHandler {
		return func(context.Context, domain.Event) { c.Add(1) }
	}
	return []func(){
		bus.Subscribe(domain.EventSessionCreated, count(&m.SessionsTotal)),
		bus.Subscribe(domain.EventSessionRedirected, count(&m.Redirects)),
		bus.Subscribe(domain.EventAgentSelected, count(&m.Selections)),
		bus.Subscribe(domain.EventClientError, count(&m.ClientErrors)),
	}
}

func (s *Server) status() StatusResponse {
	reg := s.deps.Resolver.Registry()
	return StatusResponse{
		Name:          "realtime-agents",
		Version:       s.deps.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Sessions: SessionStatus{
			Active: s.deps.Controller.Sessions().Len(),
			Total:  s.metrics.SessionsTotal.Load(),
		},
		Rosters: RosterStatus{
			Count:   reg.Len(),
			Default: reg.DefaultKey(),
		},
		Gateway: GatewayStatus{Clients: s.metrics.WSClients.Load()},
		Counters: CounterStatus{
			Redirects:    s.metrics.Redirects.Load(),
			Selections:   s.metrics.Selections.Load(),
			ClientErrors: s.metrics.ClientErrors.Load(),
			EventsSent:   s.metrics.FramesSent.Load(),
			EventsDrop:   s.metrics.FramesDropped.Load(),
		},
	}
}

// handleStatus serves GET /api/v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleMetrics serves GET /metrics in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	st := s.status()

	metric := func(name, kind, help string, value int64) {
		fmt.Fprintf(w, "# HELP realtimeagents_%s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE realtimeagents_%s %s\n", name, kind)
		fmt.Fprintf(w, "realtimeagents_%s %d\n", name, value)
	}
	metric("sessions_active", "gauge", "Number of live console sessions.", int64(st.Sessions.Active))
	metric("sessions_total", "counter", "Total console sessions opened.", st.Sessions.Total)
	metric("rosters", "gauge", "Number of registered agent rosters.", int64(st.Rosters.Count))
	metric("redirects_total", "counter", "Page loads redirected to the default roster.", st.Counters.Redirects)
	metric("selections_total", "counter", "Agent selections.", st.Counters.Selections)
	metric("client_errors_total", "counter", "Failed console actions.", st.Counters.ClientErrors)
	metric("ws_clients", "gauge", "Connected WebSocket clients.", st.Gateway.Clients)
	metric("ws_frames_sent_total", "counter", "Event frames queued to clients.", st.Counters.EventsSent)
	metric("ws_frames_dropped_total", "counter", "Event frames dropped for slow clients.", st.Counters.EventsDrop)
	metric("uptime_seconds", "gauge", "Seconds since the server started.", st.UptimeSeconds)
	metric("goroutines", "gauge", "Number of goroutines.", int64(runtime.NumGoroutine()))
}
