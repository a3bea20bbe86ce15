// Package transport holds realtime transport implementations for console sessions.
package transport

import (
	"context"

	"realtime-agents/internal/domain"
)

// Unavailable is the transport used when no realtime backend is wired in.
// Connect always fails, so sessions stay DISCONNECTED and cannot send.
type Unavailable struct{}

// NewUnavailable returns a transport that refuses to connect.
func NewUnavailable(string) domain.Transport { return Unavailable{} }

// Connect always returns ErrTransportUnavailable.
func (Unavailable) Connect(_ context.Context, agent domain.AgentDescriptor) error {
	return domain.NewDomainError("Transport.Connect", domain.ErrTransportUnavailable, "no realtime backend configured for agent "+agent.Name)
}

// Disconnect is a no-op.
func (Unavailable) Disconnect(context.Context) error { return nil }

// Ready is always false.
func (Unavailable) Ready() bool { return false }
