package domain

// AgentDescriptor describes one selectable conversational agent within a roster.
// Only Name is interpreted by the console; the rest is opaque behavioral
// configuration handed to the realtime transport.
type AgentDescriptor struct {
	Name             string            `json:"name"                        yaml:"name"`
	Description      string            `json:"description,omitempty"       yaml:"description,omitempty"`
	Instructions     string            `json:"instructions,omitempty"      yaml:"instructions,omitempty"`
	Voice            string            `json:"voice,omitempty"             yaml:"voice,omitempty"`
	Tools            []string          `json:"tools,omitempty"             yaml:"tools,omitempty"`
	DownstreamAgents []string          `json:"downstream_agents,omitempty" yaml:"downstream_agents,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"          yaml:"metadata,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d AgentDescriptor) Clone() AgentDescriptor {
	out := d
	if d.Tools != nil {
		out.Tools = append([]string(nil), d.Tools...)
	}
	if d.DownstreamAgents != nil {
		out.DownstreamAgents = append([]string(nil), d.DownstreamAgents...)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Roster is a named, ordered collection of agent descriptors.
type Roster []AgentDescriptor

// Names returns the descriptor names in roster order.
func (r Roster) Names() []string {
	names := make([]string, len(r))
	for i, a := range r {
		names[i] = a.Name
	}
	return names
}

// Contains reports whether name belongs to a descriptor in the roster.
func (r Roster) Contains(name string) bool {
	_, ok := r.Find(name)
	return ok
}

// Find returns the descriptor with the given name.
func (r Roster) Find(name string) (AgentDescriptor, bool) {
	for _, a := range r {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDescriptor{}, false
}

// First returns the name of the first descriptor, or "" for an empty roster.
// Callers treat "" as "no selection", not as an error.
func (r Roster) First() string {
	if len(r) == 0 {
		return ""
	}
	return r[0].Name
}

// Clone returns a deep copy of the roster.
func (r Roster) Clone() Roster {
	if r == nil {
		return nil
	}
	out := make(Roster, len(r))
	for i, a := range r {
		out[i] = a.Clone()
	}
	return out
}
