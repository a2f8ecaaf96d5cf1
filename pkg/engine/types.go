package engine

import (
	"time"

	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runlog"
)

// CreateRunResult reports a freshly created run.
type CreateRunResult struct {
	RunID        string         `json:"run_id"`
	ProcessID    string         `json:"process_id"`
	InitialState string         `json:"initial_state"`
	Revision     int            `json:"revision"`
	Context      map[string]any `json:"context"`
	CreatedAt    time.Time      `json:"created_at"`
}

// EmitRequest carries one emit_event call.
type EmitRequest struct {
	RunID            string
	Event            string
	ExpectedRevision int
	IdempotencyKey   string
	Role             string
	Payload          map[string]any
	ArtifactPaths    []string
}

// TransitionTaken names the edge an accepted event fired.
type TransitionTaken struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ReplayInfo describes the original acceptance a replayed emit refers to.
type ReplayInfo struct {
	Timestamp time.Time `json:"timestamp"`
	State     string    `json:"state"`
}

// EmitResult reports an accepted (or replayed) event.
type EmitResult struct {
	EventID        string           `json:"event_id"`
	Accepted       bool             `json:"accepted"`
	Replayed       bool             `json:"replayed,omitempty"`
	Replay         *ReplayInfo      `json:"replay,omitempty"`
	Transition     *TransitionTaken `json:"transition,omitempty"`
	NewRevision    int              `json:"new_revision"`
	NewStatePrompt string           `json:"new_state_prompt,omitempty"`
}

// StateResult is the full projection of a run's current position.
type StateResult struct {
	RunID              string              `json:"run_id"`
	ProcessID          string              `json:"process_id"`
	ProcessVersion     string              `json:"process_version"`
	CurrentState       string              `json:"current_state"`
	CurrentStatePrompt string              `json:"current_state_prompt,omitempty"`
	IsFinal            bool                `json:"is_final"`
	Revision           int                 `json:"revision"`
	Context            map[string]any      `json:"context"`
	MissingGuards      []string            `json:"missing_guards"`
	RequiredArtifacts  []string            `json:"required_artifacts"`
	AllowedEvents      []string            `json:"allowed_events"`
	UpdatedAt          time.Time           `json:"updated_at"`
	ArtifactBasePath   string              `json:"artifact_base_path,omitempty"`
	Tools              *process.ToolPolicy `json:"tools,omitempty"`
}

// EventInfo describes one event's availability in the current state.
type EventInfo struct {
	Name    string `json:"name"`
	Allowed bool   `json:"allowed"`
	// Reason explains a blocked event: the strictest failure across its
	// transitions.
	Reason string `json:"reason,omitempty"`
}

// ListEventsResult is the grouped event availability projection.
type ListEventsResult struct {
	CurrentState string      `json:"current_state"`
	Events       []EventInfo `json:"events"`
}

// RunSummary is one row of the operator-facing run listing.
type RunSummary struct {
	RunID        string    `json:"run_id"`
	ProcessID    string    `json:"process_id"`
	CurrentState string    `json:"current_state"`
	Revision     int       `json:"revision"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EventHistory re-exports the log entries of one run in file order.
type EventHistory = []runlog.Entry
