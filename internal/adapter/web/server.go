// Package web serves the console page, its JSON API and the per-session
// WebSocket that carries toolbar and transcript actions.
package web

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/infra/config"
	"realtime-agents/internal/infra/middleware"
	"realtime-agents/internal/usecase/roster"
	"realtime-agents/internal/usecase/viewstate"
)

//go:embed templates/*.html static/*
var assets embed.FS

// Deps holds the collaborators the web adapter drives.
type Deps struct {
	Resolver   *roster.Resolver
	Controller *viewstate.Controller
	Events     domain.EventLog
	Bus        domain.EventBus
	Server     config.ServerConfig
	Version    string
}

// Server is the console HTTP server.
type Server struct {
	deps    Deps
	addr    string
	logger  *slog.Logger
	metrics *Metrics
	started time.Time

	clients  sync.Map // connID (uint64) -> *clientConn
	nextID   atomic.Uint64
	handlers map[string]RPCHandler

	buildOnce sync.Once
	handler   http.Handler
	stopOnce  sync.Once
	unsubs    []func()

	// ctx scopes background work started by the handler chain (rate limiter cleanup).
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	httpSrv   *http.Server
	boundAddr string
}

// NewServer creates a console server listening on addr once started.
func NewServer(deps Deps, addr string, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:     deps,
		addr:     addr,
		logger:   logger,
		metrics:  &Metrics{},
		started:  time.Now(),
		handlers: make(map[string]RPCHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
	registerRPCHandlers(s)
	return s
}

// RegisterHandler adds or replaces an RPC method. Must be called before the
// server starts handling connections.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlers[method] = handler
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Handler returns the full HTTP handler, building it on first use. Building
// subscribes the server to the event bus.
func (s *Server) Handler() http.Handler {
	s.buildOnce.Do(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("GET /{$}", s.handlePage)
		mux.Handle("GET /static/", http.FileServerFS(assets))
		mux.HandleFunc("GET /api/v1/rosters", s.handleRosters)
		mux.HandleFunc("GET /api/v1/resolve", s.handleResolve)
		mux.HandleFunc("GET /api/v1/sessions/{id}", s.handleSession)
		mux.HandleFunc("GET /api/v1/sessions/{id}/events", s.handleSessionEvents)
		mux.HandleFunc("POST /api/v1/sessions/{id}/select", s.handleSelect)
		mux.HandleFunc("GET /api/v1/status", s.handleStatus)
		mux.HandleFunc("GET /metrics", s.handleMetrics)
		mux.HandleFunc("GET /healthz", handleHealth)
		mux.HandleFunc("GET /ws", s.handleUpgrade)

		unsubs := s.metrics.subscribe(s.deps.Bus)
		unsubs = append(unsubs, s.deps.Bus.SubscribeAll(s.forwardEvent))
		s.mu.Lock()
		s.unsubs = append(s.unsubs, unsubs...)
		s.mu.Unlock()

		s.handler = middleware.Chain(mux,
			middleware.AccessLog(s.logger),
			middleware.SecurityHeaders,
			middleware.RateLimit(s.ctx, s.deps.Server.RateLimit),
		)
	})
	return s.handler
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	handler := s.Handler()

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("web listen: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.boundAddr = listener.Addr().String()
	s.mu.Unlock()

	s.logger.Info("console server started", "addr", s.BoundAddr())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web serve: %w", err)
	}
	return nil
}

// Stop closes WebSocket clients and gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		unsubs := s.unsubs
		s.unsubs = nil
		s.mu.Unlock()
		for _, unsub := range unsubs {
			unsub()
		}
	})

	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// BoundAddr returns the address the server bound to. Empty until Start has
// bound the listener.
func (s *Server) BoundAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boundAddr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok\n"))
}
