package roster

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"realtime-agents/internal/domain"
	"realtime-agents/internal/infra/tracer"
)

// Query parameters read from the console URL.
const (
	ParamAgentConfig = "agentConfig"
	ParamQuery       = "query"
)

// Resolution is the outcome of resolving a console URL against the registry.
// When Redirect is set, Roster is nil and Location holds the URL the client must
// load instead.
type Resolution struct {
	ActiveKey           string        `json:"active_key"`
	Roster              domain.Roster `json:"roster,omitempty"`
	InitialSelectedName string        `json:"initial_selected_name"`
	Redirect            bool          `json:"redirect"`
	Location            string        `json:"location,omitempty"`
}

// Resolver maps an incoming query string to the active roster.
type Resolver struct {
	registry *Registry
	logger   *slog.Logger
}

// NewResolver creates a resolver over reg.
func NewResolver(reg *Registry, logger *slog.Logger) *Resolver {
	return &Resolver{registry: reg, logger: logger}
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() *Registry { return r.registry }

// Resolve reads agentConfig from u. A missing or unknown key resolves to a
// redirect onto u with agentConfig set to the default key; every other
// parameter is kept. Because the default key is always registered, resolving
// the redirect target never redirects again.
func (r *Resolver) Resolve(ctx context.Context, u *url.URL) Resolution {
	_, span := tracer.StartSpan(ctx, "roster.resolve")
	defer span.End()

	requested := u.Query().Get(ParamAgentConfig)
	span.SetAttributes(tracer.StringAttr("agent_config.requested", requested))

	if requested == "" || !r.registry.Has(requested) {
		res := Resolution{
			ActiveKey: r.registry.DefaultKey(),
			Redirect:  true,
			Location:  redirectLocation(u, r.registry.DefaultKey()),
		}
		r.logger.Debug("agent config unresolved, redirecting",
			"requested", requested, "default", res.ActiveKey)
		annotate(span, res)
		return res
	}

	agents, _ := r.registry.Get(requested)
	res := Resolution{
		ActiveKey:           requested,
		Roster:              agents,
		InitialSelectedName: agents.First(),
	}
	annotate(span, res)
	return res
}

// ResolveQuery resolves a raw query string, with or without a leading "?",
// or a full URL.
func (r *Resolver) ResolveQuery(ctx context.Context, raw string) (Resolution, error) {
	if !strings.Contains(raw, "://") && !strings.HasPrefix(raw, "/") {
		raw = "/?" + strings.TrimPrefix(raw, "?")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Resolution{}, domain.NewDomainError("Resolver.ResolveQuery", domain.ErrInvalidInput, err.Error())
	}
	return r.Resolve(ctx, u), nil
}

func redirectLocation(u *url.URL, key string) string {
	loc := *u
	q := loc.Query()
	q.Set(ParamAgentConfig, key)
	loc.RawQuery = q.Encode()
	loc.ForceQuery = false
	return loc.String()
}

func annotate(span trace.Span, res Resolution) {
	span.SetAttributes(
		tracer.StringAttr("agent_config.active", res.ActiveKey),
		tracer.BoolAttr("redirect", res.Redirect),
		tracer.IntAttr("roster.size", len(res.Roster)),
	)
	if res.Redirect {
		span.AddEvent("redirect")
	}
}
