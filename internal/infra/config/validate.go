package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateServer(cfg, ve)
	validateAgents(cfg, ve)
	validateSession(cfg, ve)
	validateEvents(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateServer(cfg *Config, ve *ValidationError) {
	if cfg.Server.Addr == "" {
		ve.Add("server.addr must not be empty")
	} else if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		ve.Add("server.addr %q is not a valid host:port", cfg.Server.Addr)
	}
	rl := cfg.Server.RateLimit
	if rl.RequestsPerMin > 0 && rl.Burst <= 0 {
		ve.Add("server.rate_limit.burst must be > 0 when rate limiting is enabled")
	}
}

// validateAgents checks a configured roster table. The registry re-checks the
// same invariants at construction; validating here reports every problem at once.
func validateAgents(cfg *Config, ve *ValidationError) {
	if len(cfg.Agents.Sets) == 0 {
		// Built-in rosters; default_set, when given, must name one of them and is
		// checked when the registry is built.
		return
	}
	if cfg.Agents.DefaultSet == "" {
		ve.Add("agents.default_set is required when agents.sets is configured")
	} else if _, ok := cfg.Agents.Sets[cfg.Agents.DefaultSet]; !ok {
		ve.Add("agents.default_set %q is not a key of agents.sets", cfg.Agents.DefaultSet)
	}
	for key, agents := range cfg.Agents.Sets {
		if strings.TrimSpace(key) == "" {
			ve.Add("agents.sets has an empty key")
			continue
		}
		seen := make(map[string]bool, len(agents))
		for i, a := range agents {
			if a.Name == "" {
				ve.Add("agents.sets[%s][%d].name must not be empty", key, i)
				continue
			}
			if seen[a.Name] {
				ve.Add("agents.sets[%s]: duplicate agent name %q", key, a.Name)
			}
			seen[a.Name] = true
		}
	}
}

func validateSession(cfg *Config, ve *ValidationError) {
	if cfg.Session.TTL <= 0 {
		ve.Add("session.ttl must be > 0")
	}
	if cfg.Session.SweepInterval <= 0 {
		ve.Add("session.sweep_interval must be > 0")
	} else if cfg.Session.SweepInterval < time.Second {
		ve.Add("session.sweep_interval must be at least 1s")
	}
}

func validateEvents(cfg *Config, ve *ValidationError) {
	switch cfg.Events.Store {
	case "memory":
	case "sqlite":
		if cfg.Events.Path == "" {
			ve.Add("events.path is required when events.store is sqlite")
		}
	default:
		ve.Add("events.store %q is invalid (want: memory, sqlite)", cfg.Events.Store)
	}
	if cfg.Events.History <= 0 {
		ve.Add("events.history must be > 0")
	}
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q is invalid (want: text, json)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout", "stderr":
	default:
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout, stderr)", cfg.Tracer.Exporter)
	}
}
