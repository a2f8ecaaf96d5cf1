// Package process defines the typed, immutable process model, the
// finite-state machine definition a run is an instance of, and its static
// validator.
package process

// Process is a named, versioned state-machine definition. Instances are
// built by the YAML front end and must pass Validate before entering the
// registry; after that they are treated as immutable.
type Process struct {
	ID             string                `yaml:"id" json:"id"`
	Version        string                `yaml:"version" json:"version"`
	InitialState   string                `yaml:"initial_state" json:"initial_state"`
	InitialContext map[string]any        `yaml:"initial_context,omitempty" json:"initial_context,omitempty"`
	States         []State               `yaml:"states" json:"states"`
	Events         []EventDefinition     `yaml:"events" json:"events"`
	Transitions    []Transition          `yaml:"transitions" json:"transitions"`
	Guards         map[string]Guard      `yaml:"guards,omitempty" json:"guards,omitempty"`
	Artifacts      []ArtifactDefinition  `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`
	Roles          []RoleDefinition      `yaml:"roles,omitempty" json:"roles,omitempty"`
}

// State is one node of the state machine.
type State struct {
	Name string `yaml:"name" json:"name"`
	// Prompt is guidance text surfaced to the agent on entering the state.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	// RequiredArtifacts lists artifact type names expected before leaving
	// the state; surfaced by GetState, enforced only through guards.
	RequiredArtifacts []string `yaml:"required_artifacts,omitempty" json:"required_artifacts,omitempty"`
	// Tools is the per-state tool-permission policy consumed by the hook
	// adapter.
	Tools   *ToolPolicy `yaml:"tools,omitempty" json:"tools,omitempty"`
	IsFinal bool        `yaml:"is_final,omitempty" json:"is_final,omitempty"`
}

// ToolPolicy decides whether an external tool invocation is allowed while a
// run sits in a given state. Denied patterns win over allowed ones;
// unmatched tools fall back to Default ("ask" when empty).
type ToolPolicy struct {
	Allowed []string `yaml:"allowed,omitempty" json:"allowed,omitempty"`
	Denied  []string `yaml:"denied,omitempty" json:"denied,omitempty"`
	Default string   `yaml:"default,omitempty" json:"default,omitempty"`
}

// EventDefinition names an input the state machine accepts.
type EventDefinition struct {
	Name string `yaml:"name" json:"name"`
	// PayloadSchema is an optional JSON-schema-shaped description of the
	// event payload. Only its shape is carried; enforcement is a stub.
	PayloadSchema map[string]any `yaml:"payload_schema,omitempty" json:"payload_schema,omitempty"`
	AllowedRoles  []string       `yaml:"allowed_roles" json:"allowed_roles"`
}

// Transition is a directed edge (From, Event) -> To, optionally guarded and
// role-restricted. A nil AllowedRoles means the transition inherits the
// event's permission alone.
type Transition struct {
	From         string   `yaml:"from" json:"from"`
	Event        string   `yaml:"event" json:"event"`
	To           string   `yaml:"to" json:"to"`
	Guard        string   `yaml:"guard,omitempty" json:"guard,omitempty"`
	AllowedRoles []string `yaml:"allowed_roles,omitempty" json:"allowed_roles,omitempty"`
}

// ArtifactDefinition documents an artifact type a process works with.
type ArtifactDefinition struct {
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RoleDefinition documents a role; permission checks compare plain strings.
type RoleDefinition struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// StateByName returns the named state, or nil.
func (p *Process) StateByName(name string) *State {
	for i := range p.States {
		if p.States[i].Name == name {
			return &p.States[i]
		}
	}
	return nil
}

// EventByName returns the named event definition, or nil.
func (p *Process) EventByName(name string) *EventDefinition {
	for i := range p.Events {
		if p.Events[i].Name == name {
			return &p.Events[i]
		}
	}
	return nil
}

// TransitionsFrom returns, in definition order, the transitions leaving
// state on event.
func (p *Process) TransitionsFrom(state, event string) []Transition {
	var out []Transition
	for _, t := range p.Transitions {
		if t.From == state && t.Event == event {
			out = append(out, t)
		}
	}
	return out
}

// GuardByName returns the named guard and whether it is defined.
func (p *Process) GuardByName(name string) (Guard, bool) {
	g, ok := p.Guards[name]
	return g, ok
}
