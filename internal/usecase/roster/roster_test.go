package roster

import (
	"io"
	"log/slog"
	"testing"

	"realtime-agents/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exampleSets is the two-roster table used across the package tests.
func exampleSets() map[string]domain.Roster {
	return map[string]domain.Roster{
		"default": {{Name: "Agent A"}, {Name: "Agent B"}},
		"alt":     {{Name: "Agent C"}},
	}
}

func newExampleResolver(t *testing.T) *Resolver {
	t.Helper()
	reg, err := NewRegistry("default", exampleSets())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return NewResolver(reg, newTestLogger())
}
