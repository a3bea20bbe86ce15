// Package eventlog stores the per-session event history shown in the events pane.
package eventlog

import (
	"context"
	"sync"

	"realtime-agents/internal/domain"
)

// MemoryLog keeps the most recent events of each session in memory.
type MemoryLog struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Event
	history  int
}

// NewMemoryLog creates a log that keeps at most history events per session.
func NewMemoryLog(history int) *MemoryLog {
	if history <= 0 {
		history = 500
	}
	return &MemoryLog{sessions: make(map[string][]domain.Event), history: history}
}

// Append stores event, dropping the session's oldest event when full.
func (l *MemoryLog) Append(_ context.Context, event domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := append(l.sessions[event.SessionID], event)
	if over := len(events) - l.history; over > 0 {
		events = append(events[:0:0], events[over:]...)
	}
	l.sessions[event.SessionID] = events
	return nil
}

// List returns up to limit of the session's most recent events, oldest first.
func (l *MemoryLog) List(_ context.Context, sessionID string, limit int) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.sessions[sessionID]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return append([]domain.Event(nil), events...), nil
}

// Forget drops a session's history.
func (l *MemoryLog) Forget(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, sessionID)
	return nil
}

// Sessions returns the number of sessions with history.
func (l *MemoryLog) Sessions() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sessions)
}

// Close is a no-op.
func (l *MemoryLog) Close() error { return nil }
