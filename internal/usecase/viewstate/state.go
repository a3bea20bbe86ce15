package viewstate

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/usecase/roster"
)

// View is a read-only snapshot of a console session, shaped for the page
// template and the JSON API.
type View struct {
	ID                   string               `json:"id"`
	ActiveKey            string               `json:"active_key"`
	Roster               domain.Roster        `json:"roster"`
	SelectedName         string               `json:"selected_name"`
	Status               domain.SessionStatus `json:"status"`
	UserText             string               `json:"user_text"`
	CanSend              bool                 `json:"can_send"`
	EventsPaneExpanded   bool                 `json:"events_pane_expanded"`
	AudioPlaybackEnabled bool                 `json:"audio_playback_enabled"`
	PTTActive            bool                 `json:"ptt_active"`
	PTTUserSpeaking      bool                 `json:"ptt_user_speaking"`
	Query                string               `json:"query,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// State is the selection state of one console page load. The active key and
// roster are fixed at creation; only the selected name and the UI flags change.
type State struct {
	mu        sync.RWMutex
	id        string
	activeKey string
	roster    domain.Roster
	strict    bool
	query     string

	selectedName    string
	status          domain.SessionStatus
	userText        string
	eventsExpanded  bool
	audioPlayback   bool
	pttActive       bool
	pttUserSpeaking bool

	createdAt time.Time
	updatedAt time.Time
}

// NewState seeds a state from a non-redirecting resolution. query is the
// diagnostic "query" parameter shown verbatim on the page.
func NewState(res roster.Resolution, query string, strict bool) *State {
	now := time.Now()
	return &State{
		id:             ulid.Make().String(),
		activeKey:      res.ActiveKey,
		roster:         res.Roster.Clone(),
		strict:         strict,
		query:          query,
		selectedName:   res.InitialSelectedName,
		status:         domain.StatusDisconnected,
		eventsExpanded: true,
		audioPlayback:  true,
		createdAt:      now,
		updatedAt:      now,
	}
}

// ID returns the session identifier.
func (s *State) ID() string { return s.id }

// ActiveKey returns the resolved roster key.
func (s *State) ActiveKey() string { return s.activeKey }

// Roster returns a copy of the active roster.
func (s *State) Roster() domain.Roster { return s.roster.Clone() }

// SelectedName returns the currently selected agent name ("" means no selection).
func (s *State) SelectedName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedName
}

// SelectedAgent returns the descriptor for the selected name, if it is a
// member of the active roster.
func (s *State) SelectedAgent() (domain.AgentDescriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roster.Find(s.selectedName)
}

// SelectName overwrites the selected name. In lenient mode no membership check
// is made: the selector only offers roster names, so the value is trusted. In
// strict mode a name outside the active roster is rejected and the state is
// left unchanged.
func (s *State) SelectName(name string) error {
	if s.strict && name != "" && !s.roster.Contains(name) {
		return domain.NewDomainError("State.SelectName", domain.ErrAgentNotInRoster, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedName = name
	s.touch()
	return nil
}

// Status returns the transport status.
func (s *State) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus records a transport status change.
func (s *State) SetStatus(status domain.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.touch()
}

// compareAndSetStatus moves from old to next and reports whether it did.
func (s *State) compareAndSetStatus(old, next domain.SessionStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != old {
		return false
	}
	s.status = next
	s.touch()
	return true
}

// UserText returns the transcript draft.
func (s *State) UserText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userText
}

// SetUserText replaces the transcript draft.
func (s *State) SetUserText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userText = text
	s.touch()
}

// takeUserText returns the draft and clears it.
func (s *State) takeUserText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	text := s.userText
	s.userText = ""
	s.touch()
	return text
}

// SetEventsPaneExpanded toggles the events pane.
func (s *State) SetEventsPaneExpanded(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventsExpanded = v
	s.touch()
}

// SetAudioPlaybackEnabled toggles agent audio playback.
func (s *State) SetAudioPlaybackEnabled(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioPlayback = v
	s.touch()
}

// SetPTTActive toggles push-to-talk mode. Leaving PTT mode also ends any
// in-progress talk.
func (s *State) SetPTTActive(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pttActive = v
	if !v {
		s.pttUserSpeaking = false
	}
	s.touch()
}

// PTTActive reports whether push-to-talk mode is on.
func (s *State) PTTActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pttActive
}

// SetPTTUserSpeaking records whether the talk button is held.
func (s *State) SetPTTUserSpeaking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pttUserSpeaking = v
	s.touch()
}

// CanSend reports whether a typed message may be sent: the session must be
// connected and the transport's data channel open.
func (s *State) CanSend(t domain.Transport) bool {
	return s.Status() == domain.StatusConnected && t != nil && t.Ready()
}

// Snapshot returns the full view. t supplies transport readiness for CanSend.
func (s *State) Snapshot(t domain.Transport) View {
	canSend := s.CanSend(t)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return View{
		ID:                   s.id,
		ActiveKey:            s.activeKey,
		Roster:               s.roster.Clone(),
		SelectedName:         s.selectedName,
		Status:               s.status,
		UserText:             s.userText,
		CanSend:              canSend,
		EventsPaneExpanded:   s.eventsExpanded,
		AudioPlaybackEnabled: s.audioPlayback,
		PTTActive:            s.pttActive,
		PTTUserSpeaking:      s.pttUserSpeaking,
		Query:                s.query,
		CreatedAt:            s.createdAt,
		UpdatedAt:            s.updatedAt,
	}
}

// lastActive returns the time of the last mutation.
func (s *State) lastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Touch marks the session as active without changing it.
func (s *State) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
}

func (s *State) touch() { s.updatedAt = time.Now() }
