package domain

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// Sentinel errors for the domain layer.
var (
	ErrRosterNotFound       = fmt.Errorf("roster %w", ErrNotFound)
	ErrAgentNotInRoster     = fmt.Errorf("agent not in active roster: %w", ErrInvalidInput)
	ErrSessionNotFound      = fmt.Errorf("session %w", ErrNotFound)
	ErrRegistryEmpty        = fmt.Errorf("roster registry has no entries")
	ErrDefaultRosterMissing = fmt.Errorf("default roster key not in registry")

	// Realtime collaborator errors.
	ErrTransportUnavailable = fmt.Errorf("realtime transport unavailable")
	ErrInvalidServerEvent   = fmt.Errorf("invalid server event")
	ErrAudioDeviceDenied    = fmt.Errorf("audio device access denied")

	// Gateway / RPC errors.
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid: %w", ErrInvalidInput)
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.New")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsClientError reports whether err was caused by bad caller input rather than
// by the server or one of its collaborators.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrNotFound)
}
