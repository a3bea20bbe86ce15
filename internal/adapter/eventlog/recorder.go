package eventlog

import (
	"context"
	"log/slog"

	"realtime-agents/internal/domain"
)

// forgetter is implemented by logs that drop a session's history once the
// session is gone.
type forgetter interface {
	Forget(ctx context.Context, sessionID string) error
}

// Recorder copies every session event from the bus into an event log.
type Recorder struct {
	log    domain.EventLog
	logger *slog.Logger
	unsub  func()
}

// NewRecorder subscribes to bus and starts recording. Events without a
// session id are not recorded.
func NewRecorder(bus domain.EventBus, log domain.EventLog, logger *slog.Logger) *Recorder {
	r := &Recorder{log: log, logger: logger}
	r.unsub = bus.SubscribeAll(r.handle)
	return r
}

func (r *Recorder) handle(ctx context.Context, event domain.Event) {
	if event.SessionID == "" {
		return
	}
	if event.Type == domain.EventSessionClosed {
		if f, ok := r.log.(forgetter); ok {
			if err := f.Forget(ctx, event.SessionID); err != nil {
				r.logger.Warn("event log forget failed", "session_id", event.SessionID, "error", err)
			}
			return
		}
	}
	if err := r.log.Append(ctx, event); err != nil {
		r.logger.Warn("event log append failed",
			"session_id", event.SessionID, "type", event.Type, "error", err)
	}
}

// Stop unsubscribes the recorder from the bus.
func (r *Recorder) Stop() {
	r.unsub()
}
