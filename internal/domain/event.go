package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventSessionCreated    EventType = "session.created"
	EventSessionRedirected EventType = "session.redirected"
	EventSessionStatus     EventType = "session.status"
	EventSessionClosed     EventType = "session.closed"
	EventAgentSelected     EventType = "agent.selected"

	// Transcript pane events.
	EventTranscriptUpdated EventType = "transcript.updated"
	EventTranscriptSent    EventType = "transcript.sent"

	// Toolbar events.
	EventToolbarPTT     EventType = "toolbar.ptt"
	EventToolbarTalk    EventType = "toolbar.talk"
	EventEventsExpanded EventType = "events.expanded"
	EventAudioPlayback  EventType = "audio.playback"
	EventClientError    EventType = "client.error"
)

// Event is the envelope published on the event bus and shown in the events pane.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event stamped with the current time. A payload that
// cannot be marshaled is dropped rather than failing the caller.
func NewEvent(typ EventType, sessionID string, payload any) Event {
	ev := Event{Type: typ, Timestamp: time.Now().UTC(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}

// EventLog persists events for the events pane.
type EventLog interface {
	// Append stores an event.
	Append(ctx context.Context, event Event) error
	// List returns up to limit of the most recent events for a session, oldest first.
	// A limit <= 0 means no limit.
	List(ctx context.Context, sessionID string, limit int) ([]Event, error)
	Close() error
}
