package domain

import "context"

// SessionStatus is the realtime transport state shown in the toolbar.
type SessionStatus string

const (
	StatusDisconnected SessionStatus = "DISCONNECTED"
	StatusConnecting   SessionStatus = "CONNECTING"
	StatusConnected    SessionStatus = "CONNECTED"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusDisconnected, StatusConnecting, StatusConnected:
		return true
	}
	return false
}

// Transport is the realtime audio/data channel a console session drives.
type Transport interface {
	// Connect opens a realtime session for the given agent.
	Connect(ctx context.Context, agent AgentDescriptor) error
	// Disconnect tears down the realtime session. Safe to call when not connected.
	Disconnect(ctx context.Context) error
	// Ready reports whether the data channel is open for sending.
	Ready() bool
}
