package viewstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-agents/internal/domain"
)

// TransportFactory creates the realtime transport for a new session.
type TransportFactory func(sessionID string) domain.Transport

// Controller applies console actions (scenario selector, transcript, toolbar)
// to sessions and publishes an event for each, replacing the page's inert
// callbacks with observable operations.
type Controller struct {
	sessions   *Manager
	bus        domain.EventBus
	newTrans   TransportFactory
	logger     *slog.Logger
	mu         sync.Mutex
	transports map[string]domain.Transport
}

// NewController creates a controller over sessions.
func NewController(sessions *Manager, bus domain.EventBus, factory TransportFactory, logger *slog.Logger) *Controller {
	return &Controller{
		sessions:   sessions,
		bus:        bus,
		newTrans:   factory,
		logger:     logger,
		transports: make(map[string]domain.Transport),
	}
}

// Sessions returns the underlying session manager.
func (c *Controller) Sessions() *Manager { return c.sessions }

// Transport returns the session's transport, creating it on first use.
func (c *Controller) Transport(id string) domain.Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.transports[id]
	if !ok {
		t = c.newTrans(id)
		c.transports[id] = t
	}
	return t
}

// View returns the session snapshot.
func (c *Controller) View(id string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	return st.Snapshot(c.Transport(id)), nil
}

// Select changes the selected agent.
func (c *Controller) Select(ctx context.Context, id, name string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	previous := st.SelectedName()
	if err := st.SelectName(name); err != nil {
		c.publishError(ctx, id, "agent.select", err)
		return View{}, err
	}
	c.publish(ctx, domain.EventAgentSelected, id, map[string]any{"name": name, "previous": previous})
	return st.Snapshot(c.Transport(id)), nil
}

// SetUserText replaces the transcript draft.
func (c *Controller) SetUserText(ctx context.Context, id, text string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	st.SetUserText(text)
	c.publish(ctx, domain.EventTranscriptUpdated, id, map[string]any{"text": text})
	return st.Snapshot(c.Transport(id)), nil
}

// Send submits the transcript draft. It fails with ErrTransportUnavailable
// unless the session is connected and the transport is ready.
func (c *Controller) Send(ctx context.Context, id string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	t := c.Transport(id)
	if !st.CanSend(t) {
		err := domain.NewDomainError("Controller.Send", domain.ErrTransportUnavailable, "session not connected")
		c.publishError(ctx, id, "transcript.send", err)
		return View{}, err
	}
	text := st.takeUserText()
	c.publish(ctx, domain.EventTranscriptSent, id, map[string]any{"text": text})
	return st.Snapshot(t), nil
}

// ToggleConnection connects a disconnected session to the selected agent, or
// disconnects a connecting or connected one.
func (c *Controller) ToggleConnection(ctx context.Context, id string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	t := c.Transport(id)

	if !st.compareAndSetStatus(domain.StatusDisconnected, domain.StatusConnecting) {
		if err := t.Disconnect(ctx); err != nil {
			c.logger.Warn("transport disconnect failed", "session_id", id, "error", err)
		}
		st.SetStatus(domain.StatusDisconnected)
		c.publishStatus(ctx, id, domain.StatusDisconnected)
		return st.Snapshot(t), nil
	}
	c.publishStatus(ctx, id, domain.StatusConnecting)

	agent, ok := st.SelectedAgent()
	if !ok {
		st.SetStatus(domain.StatusDisconnected)
		c.publishStatus(ctx, id, domain.StatusDisconnected)
		err := domain.NewDomainError("Controller.ToggleConnection", domain.ErrAgentNotInRoster, st.SelectedName())
		c.publishError(ctx, id, "session.toggle_connection", err)
		return View{}, err
	}

	if err := t.Connect(ctx, agent); err != nil {
		st.SetStatus(domain.StatusDisconnected)
		c.publishStatus(ctx, id, domain.StatusDisconnected)
		c.publishError(ctx, id, "session.toggle_connection", err)
		return View{}, domain.WrapOp("connect", err)
	}
	if !st.compareAndSetStatus(domain.StatusConnecting, domain.StatusConnected) {
		// Toggled off while Connect was in flight.
		if err := t.Disconnect(ctx); err != nil {
			c.logger.Warn("transport disconnect failed", "session_id", id, "error", err)
		}
		c.logger.Info("session connect cancelled", "session_id", id, "agent", agent.Name)
		return st.Snapshot(t), nil
	}
	c.publishStatus(ctx, id, domain.StatusConnected)
	c.logger.Info("session connected", "session_id", id, "agent", agent.Name)
	return st.Snapshot(t), nil
}

// SetPTT turns push-to-talk mode on or off.
func (c *Controller) SetPTT(ctx context.Context, id string, active bool) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	st.SetPTTActive(active)
	c.publish(ctx, domain.EventToolbarPTT, id, map[string]any{"active": active})
	return st.Snapshot(c.Transport(id)), nil
}

// TalkDown starts a push-to-talk utterance. It requires PTT mode and a
// connected session.
func (c *Controller) TalkDown(ctx context.Context, id string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	if !st.PTTActive() {
		return View{}, domain.NewDomainError("Controller.TalkDown", domain.ErrInvalidInput, "push-to-talk is off")
	}
	if st.Status() != domain.StatusConnected {
		err := domain.NewDomainError("Controller.TalkDown", domain.ErrTransportUnavailable, "session not connected")
		c.publishError(ctx, id, "toolbar.talk_down", err)
		return View{}, err
	}
	st.SetPTTUserSpeaking(true)
	c.publish(ctx, domain.EventToolbarTalk, id, map[string]any{"speaking": true})
	return st.Snapshot(c.Transport(id)), nil
}

// TalkUp ends a push-to-talk utterance. Releasing when not talking is a no-op.
func (c *Controller) TalkUp(ctx context.Context, id string) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	st.SetPTTUserSpeaking(false)
	c.publish(ctx, domain.EventToolbarTalk, id, map[string]any{"speaking": false})
	return st.Snapshot(c.Transport(id)), nil
}

// SetEventsExpanded shows or hides the events pane.
func (c *Controller) SetEventsExpanded(ctx context.Context, id string, expanded bool) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	st.SetEventsPaneExpanded(expanded)
	c.publish(ctx, domain.EventEventsExpanded, id, map[string]any{"expanded": expanded})
	return st.Snapshot(c.Transport(id)), nil
}

// SetAudioPlayback enables or mutes agent audio.
func (c *Controller) SetAudioPlayback(ctx context.Context, id string, enabled bool) (View, error) {
	st, err := c.sessions.Get(id)
	if err != nil {
		return View{}, err
	}
	st.SetAudioPlaybackEnabled(enabled)
	c.publish(ctx, domain.EventAudioPlayback, id, map[string]any{"enabled": enabled})
	return st.Snapshot(c.Transport(id)), nil
}

// Close disconnects the session's transport and removes the session.
func (c *Controller) Close(ctx context.Context, id string) error {
	c.mu.Lock()
	t, ok := c.transports[id]
	delete(c.transports, id)
	c.mu.Unlock()
	if ok {
		if err := t.Disconnect(ctx); err != nil {
			c.logger.Warn("transport disconnect failed", "session_id", id, "error", err)
		}
	}
	return c.sessions.Close(id)
}

// Prune drops transports whose session no longer exists, e.g. after Sweep.
func (c *Controller) Prune(ctx context.Context) int {
	c.mu.Lock()
	var stale []domain.Transport
	for id, t := range c.transports {
		if _, err := c.sessions.Get(id); err != nil {
			stale = append(stale, t)
			delete(c.transports, id)
		}
	}
	c.mu.Unlock()
	for _, t := range stale {
		_ = t.Disconnect(ctx)
	}
	return len(stale)
}

// Run expires idle sessions every interval until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if c.sessions.Sweep(now) > 0 {
				c.Prune(ctx)
			}
		}
	}
}

func (c *Controller) publishStatus(ctx context.Context, id string, status domain.SessionStatus) {
	c.publish(ctx, domain.EventSessionStatus, id, map[string]any{"status": status})
}

func (c *Controller) publishError(ctx context.Context, id, op string, err error) {
	c.logger.Debug("console action failed", "session_id", id, "op", op, "error", err)
	c.publish(ctx, domain.EventClientError, id, map[string]any{"op": op, "error": err.Error()})
}

func (c *Controller) publish(ctx context.Context, typ domain.EventType, id string, payload any) {
	c.bus.Publish(ctx, domain.NewEvent(typ, id, payload))
}
