package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/infra/tracer"
)

// clientConn tracks a single WebSocket connection bound to one console session.
type clientConn struct {
	id        uint64
	sessionID string
	ws        *websocket.Conn
	sendCh    chan Frame // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// enqueue queues f without blocking and reports whether it was accepted.
func (cc *clientConn) enqueue(f Frame) bool {
	select {
	case <-cc.done:
		return false
	default:
	}
	select {
	case cc.sendCh <- f:
		return true
	default:
		return false
	}
}

var defaultOriginPatterns = []string{
	"localhost",
	"localhost:*",
	"127.0.0.1",
	"127.0.0.1:*",
	"[::1]",
	"[::1]:*",
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(paramSession)
	if sessionID == "" {
		s.writeError(w, r, domain.NewDomainError("web.ws", domain.ErrInvalidInput, "session parameter is required"))
		return
	}
	if _, err := s.deps.Controller.Sessions().Get(sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	patterns := append(append([]string(nil), defaultOriginPatterns...), s.deps.Server.AllowedOrigins...)
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	cc := &clientConn{
		id:        s.nextID.Add(1),
		sessionID: sessionID,
		ws:        ws,
		sendCh:    make(chan Frame, 64),
		done:      make(chan struct{}),
	}
	s.clients.Store(cc.id, cc)
	s.metrics.WSClients.Add(1)
	s.logger.Info("console client connected", "conn_id", cc.id, "session_id", sessionID)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.close()
	s.clients.Delete(cc.id)
	s.metrics.WSClients.Add(-1)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("console client disconnected", "conn_id", cc.id, "session_id", sessionID)
}

// readLoop handles requests in arrival order so that a client's actions apply
// to its session in the order they were made.
func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				cc.close()
				return
			}
		}
	}
}

// forwardEvent queues session events to that session's clients.
func (s *Server) forwardEvent(_ context.Context, event domain.Event) {
	if event.SessionID == "" {
		return
	}
	var frame *Frame
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		if cc.sessionID != event.SessionID {
			return true
		}
		if frame == nil {
			payload, err := json.Marshal(event)
			if err != nil {
				return false
			}
			frame = &Frame{Type: FrameTypeEvent, Payload: payload}
		}
		if cc.enqueue(*frame) {
			s.metrics.FramesSent.Add(1)
		} else {
			s.metrics.FramesDropped.Add(1)
			s.logger.Warn("dropped event for slow console client", "conn_id", cc.id, "type", event.Type)
		}
		return true
	})
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	ctx, span := tracer.StartSpan(ctx, "rpc."+req.Method)
	defer span.End()
	span.SetAttributes(tracer.StringAttr("session_id", cc.sessionID))

	handler, ok := s.handlers[req.Method]
	if !ok {
		tracer.RecordError(span, domain.ErrRPCMethodNotFound)
		s.sendResponse(cc, req.ID, nil, domain.ErrRPCMethodNotFound)
		return
	}

	result, err := handler(ctx, cc.sessionID, req.Payload)
	if err != nil {
		tracer.RecordError(span, err)
	} else {
		tracer.SetOK(span)
	}
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		Payload: result,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if !cc.enqueue(resp) {
		s.logger.Warn("dropped RPC response for slow console client", "conn_id", cc.id, "frame_id", id)
	}
}
