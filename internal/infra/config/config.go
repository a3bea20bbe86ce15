package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"realtime-agents/internal/domain"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Agents   AgentsConfig  `yaml:"agents"`
	Session  SessionConfig `yaml:"session"`
	Events   EventsConfig  `yaml:"events"`
	Logger   LoggerConfig  `yaml:"logger"`
	Tracer   TracerConfig  `yaml:"tracer"`
	Includes []string      `yaml:"includes,omitempty"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr           string          `yaml:"addr"`
	AllowedOrigins []string        `yaml:"allowed_origins,omitempty"` // extra WebSocket origin patterns
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client request limits. RequestsPerMin <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// AgentsConfig holds the agent roster table. An empty Sets map selects the
// compiled-in rosters.
type AgentsConfig struct {
	DefaultSet string                   `yaml:"default_set"`
	Sets       map[string]domain.Roster `yaml:"sets,omitempty"`
}

// SessionConfig holds per-page-load console session settings.
type SessionConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	StrictSelection bool          `yaml:"strict_selection"` // reject selections outside the active roster
}

// EventsConfig holds events pane storage settings.
type EventsConfig struct {
	Store   string `yaml:"store"` // "memory" or "sqlite"
	Path    string `yaml:"path"`  // sqlite database file
	History int    `yaml:"history"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds OpenTelemetry settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".realtime-agents", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":3000",
			RateLimit: RateLimitConfig{
				RequestsPerMin: 600,
				Burst:          60,
			},
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Minute,
		},
		Events: EventsConfig{
			Store:   "memory",
			Path:    filepath.Join(defaultDataDir(), "events.db"),
			History: 500,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file, merges includes, applies env var overrides and
// validates the result. A missing file yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass: unmarshal to get the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: re-unmarshal main config so it takes precedence over includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides maps REALTIMEAGENTS_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REALTIMEAGENTS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("REALTIMEAGENTS_SERVER_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitAndTrim(v, ",")
	}
	if v := os.Getenv("REALTIMEAGENTS_RATE_LIMIT_REQUESTS_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit.RequestsPerMin = n
		}
	}
	if v := os.Getenv("REALTIMEAGENTS_RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("REALTIMEAGENTS_AGENTS_DEFAULT_SET"); v != "" {
		cfg.Agents.DefaultSet = v
	}
	if v := os.Getenv("REALTIMEAGENTS_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = d
		}
	}
	if v := os.Getenv("REALTIMEAGENTS_SESSION_STRICT_SELECTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.StrictSelection = b
		}
	}
	if v := os.Getenv("REALTIMEAGENTS_EVENTS_STORE"); v != "" {
		cfg.Events.Store = v
	}
	if v := os.Getenv("REALTIMEAGENTS_EVENTS_PATH"); v != "" {
		cfg.Events.Path = v
	}
	if v := os.Getenv("REALTIMEAGENTS_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("REALTIMEAGENTS_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("REALTIMEAGENTS_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("REALTIMEAGENTS_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	// Allow 0600 and 0644 (readable by others but not writable)
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
