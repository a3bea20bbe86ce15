package roster

import (
	"fmt"
	"sort"

	"realtime-agents/internal/domain"
)

// Registry is the immutable mapping from roster key to ordered agent descriptors.
// It is built once at startup and shared read-only, so it needs no locking.
type Registry struct {
	sets       map[string]domain.Roster
	keys       []string
	defaultKey string
}

// NewRegistry validates sets and returns a registry that owns a deep copy of them.
// The default key must name one of the sets so that a redirect to it always
// resolves on the next request.
func NewRegistry(defaultKey string, sets map[string]domain.Roster) (*Registry, error) {
	const op = "Registry.New"
	if len(sets) == 0 {
		return nil, domain.NewDomainError(op, domain.ErrRegistryEmpty, "")
	}
	if _, ok := sets[defaultKey]; !ok {
		return nil, domain.NewDomainError(op, domain.ErrDefaultRosterMissing, fmt.Sprintf("key %q", defaultKey))
	}

	r := &Registry{
		sets:       make(map[string]domain.Roster, len(sets)),
		keys:       make([]string, 0, len(sets)),
		defaultKey: defaultKey,
	}
	for key, agents := range sets {
		if key == "" {
			return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "empty roster key")
		}
		seen := make(map[string]bool, len(agents))
		for i, a := range agents {
			if a.Name == "" {
				return nil, domain.NewDomainError(op, domain.ErrInvalidInput,
					fmt.Sprintf("roster %q: agent %d has no name", key, i))
			}
			if seen[a.Name] {
				return nil, domain.NewDomainError(op, domain.ErrInvalidInput,
					fmt.Sprintf("roster %q: duplicate agent name %q", key, a.Name))
			}
			seen[a.Name] = true
		}
		cp := agents.Clone()
		if cp == nil {
			cp = domain.Roster{}
		}
		r.sets[key] = cp
		r.keys = append(r.keys, key)
	}
	sort.Strings(r.keys)
	return r, nil
}

// Get returns a copy of the roster for key.
func (r *Registry) Get(key string) (domain.Roster, bool) {
	agents, ok := r.sets[key]
	if !ok {
		return nil, false
	}
	return agents.Clone(), true
}

// Has reports whether key names a roster.
func (r *Registry) Has(key string) bool {
	_, ok := r.sets[key]
	return ok
}

// Keys returns the roster keys in sorted order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.keys...)
}

// DefaultKey returns the key used when a request names no valid roster.
func (r *Registry) DefaultKey() string { return r.defaultKey }

// Len returns the number of rosters.
func (r *Registry) Len() int { return len(r.sets) }
