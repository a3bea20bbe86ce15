package web

import (
	"context"
	"encoding/json"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/viewstate"
)

// RPCHandler handles one RPC method call for the connection's session.
type RPCHandler func(ctx context.Context, sessionID string, payload json.RawMessage) (json.RawMessage, error)

func registerRPCHandlers(s *Server) {
	ctrl := s.deps.Controller

	s.RegisterHandler("agent.select", func(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Name *string `json:"name"`
		}
		if err := decodePayload(payload, &req); err != nil || req.Name == nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		return viewResult(ctrl.Select(ctx, id, *req.Name))
	})
	s.RegisterHandler("transcript.set_text", func(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Text *string `json:"text"`
		}
		if err := decodePayload(payload, &req); err != nil || req.Text == nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		return viewResult(ctrl.SetUserText(ctx, id, *req.Text))
	})
	s.RegisterHandler("transcript.send", sessionAction(ctrl.Send))
	s.RegisterHandler("session.toggle_connection", sessionAction(ctrl.ToggleConnection))
	s.RegisterHandler("toolbar.set_ptt", flagAction("active", ctrl.SetPTT))
	s.RegisterHandler("toolbar.talk_down", sessionAction(ctrl.TalkDown))
	s.RegisterHandler("toolbar.talk_up", sessionAction(ctrl.TalkUp))
	s.RegisterHandler("events.set_expanded", flagAction("expanded", ctrl.SetEventsExpanded))
	s.RegisterHandler("audio.set_playback", flagAction("enabled", ctrl.SetAudioPlayback))

	s.RegisterHandler("session.get", func(_ context.Context, id string, _ json.RawMessage) (json.RawMessage, error) {
		return viewResult(ctrl.View(id))
	})
	s.RegisterHandler("events.list", func(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
		var req struct {
			Limit int `json:"limit"`
		}
		if err := decodePayload(payload, &req); err != nil || req.Limit < 0 {
			return nil, domain.ErrRPCInvalidPayload
		}
		events, err := s.deps.Events.List(ctx, id, req.Limit)
		if err != nil {
			return nil, err
		}
		if events == nil {
			events = []domain.Event{}
		}
		return json.Marshal(events)
	})
}

// decodePayload unmarshals payload into v. An absent payload leaves v zero.
func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	return json.Unmarshal(payload, v)
}

func viewResult(view viewstate.View, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	return json.Marshal(view)
}

// sessionAction adapts a parameterless controller action.
func sessionAction(fn func(context.Context, string) (viewstate.View, error)) RPCHandler {
	return func(ctx context.Context, id string, _ json.RawMessage) (json.RawMessage, error) {
		return viewResult(fn(ctx, id))
	}
}

// flagAction adapts a controller action taking one required boolean field.
func flagAction(field string, fn func(context.Context, string, bool) (viewstate.View, error)) RPCHandler {
	return func(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
		var req map[string]json.RawMessage
		if err := decodePayload(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		raw, ok := req[field]
		if !ok {
			return nil, domain.ErrRPCInvalidPayload
		}
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		return viewResult(fn(ctx, id, v))
	}
}
