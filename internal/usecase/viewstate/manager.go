package viewstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/roster"
)

// Manager owns the live console sessions, one per page load.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*State
	ttl      time.Duration
	strict   bool
	bus      domain.EventBus
	logger   *slog.Logger
}

// NewManager creates a manager. Sessions idle longer than ttl are removed by
// Sweep. strict enables the roster membership check on SelectName.
func NewManager(bus domain.EventBus, ttl time.Duration, strict bool, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*State),
		ttl:      ttl,
		strict:   strict,
		bus:      bus,
		logger:   logger,
	}
}

// Open creates a session from a resolution. A redirecting resolution has no
// roster and is rejected.
func (m *Manager) Open(ctx context.Context, res roster.Resolution, query string) (*State, error) {
	if res.Redirect {
		return nil, domain.NewDomainError("Manager.Open", domain.ErrInvalidInput, "resolution requires redirect")
	}
	st := NewState(res, query, m.strict)

	m.mu.Lock()
	m.sessions[st.ID()] = st
	m.mu.Unlock()

	m.logger.Info("console session opened",
		"session_id", st.ID(),
		"agent_config", res.ActiveKey,
		"selected", res.InitialSelectedName,
	)
	m.bus.Publish(ctx, domain.NewEvent(domain.EventSessionCreated, st.ID(), map[string]any{
		"agent_config":  res.ActiveKey,
		"agents":        res.Roster.Names(),
		"selected_name": res.InitialSelectedName,
	}))
	return st, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return st, nil
}

// Close removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	if _, ok := m.sessions[id]; !ok {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Debug("console session closed", "session_id", id)
	m.publishClosed(id, "closed")
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the ids of all live sessions.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Sweep removes sessions idle since before now-ttl and returns how many it removed.
func (m *Manager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.ttl)
	var expired []string
	m.mu.Lock()
	for id, st := range m.sessions {
		if st.lastActive().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	if len(expired) > 0 {
		m.logger.Info("expired console sessions", "count", len(expired))
	}
	for _, id := range expired {
		m.publishClosed(id, "expired")
	}
	return len(expired)
}

func (m *Manager) publishClosed(id, reason string) {
	m.bus.Publish(context.Background(), domain.NewEvent(domain.EventSessionClosed, id, map[string]any{"reason": reason}))
}
