package engine

import (
	"errors"
	"fmt"

	"github.com/CAPHTECH/state-gate-sub000/pkg/artifact"
	"github.com/CAPHTECH/state-gate-sub000/pkg/guard"
	"github.com/CAPHTECH/state-gate-sub000/pkg/metadata"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
	"github.com/CAPHTECH/state-gate-sub000/pkg/registry"
	"github.com/CAPHTECH/state-gate-sub000/pkg/role"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runlog"
)

// EmitEvent attempts one state transition. The checks run in a fixed
// order so every failure mode maps to exactly one error code:
//
//	input shape, run lookup, process lookup, idempotent replay, artifact
//	path validation, revision check, event existence, event permission,
//	transition selection, commit, context merge.
//
// The idempotency lookup deliberately precedes the revision check: a
// retried request that already committed must read as success even when
// its expected_revision has gone stale. The commit itself re-checks the
// revision under the run's exclusive lock, so everything before it is
// advisory fast-fail.
func (e *Engine) EmitEvent(req EmitRequest) (*EmitResult, error) {
	if req.IdempotencyKey == "" {
		return nil, NewError(CodeInvalidPayload, "idempotency_key is required").
			WithDetail("validation_errors", []ValidationIssue{
				{Path: "/idempotency_key", Message: "must be a non-empty string"},
			})
	}
	if req.Event == "" {
		return nil, NewError(CodeInvalidPayload, "event is required").
			WithDetail("validation_errors", []ValidationIssue{
				{Path: "/event", Message: "must be a non-empty string"},
			})
	}

	m, latest, err := e.loadRun(req.RunID)
	if err != nil {
		return nil, err
	}

	p, err := e.registry.GetOrLoad(m.ProcessID)
	if err != nil {
		if errors.Is(err, registry.ErrProcessNotFound) {
			return nil, NewError(CodeProcessNotFound, "process not found: %s", m.ProcessID)
		}
		return nil, NewError(CodeInternal, "failed to load process %s: %v", m.ProcessID, err)
	}

	prior, err := e.logs.GetEntryByIdempotencyKey(req.RunID, req.IdempotencyKey)
	if err != nil {
		return nil, NewError(CodeInternal, "failed to read run log: %v", err)
	}
	if prior != nil {
		engineLog.Printf("idempotent replay: run=%s, key=%s, revision=%d", req.RunID, req.IdempotencyKey, prior.Revision)
		eventID, err := runid.NewEventID()
		if err != nil {
			return nil, NewError(CodeInternal, "%v", err)
		}
		return &EmitResult{
			EventID:     eventID,
			Accepted:    true,
			Replayed:    true,
			Replay:      &ReplayInfo{Timestamp: prior.Timestamp, State: prior.State},
			NewRevision: prior.Revision,
		}, nil
	}

	if issues := validateArtifactPaths(req.ArtifactPaths); len(issues) > 0 {
		return nil, NewError(CodeInvalidPayload, "invalid artifact paths").
			WithDetail("validation_errors", issues)
	}
	if issues := validatePayloadShape(p.EventByName(req.Event), req.Payload); len(issues) > 0 {
		return nil, NewError(CodeInvalidPayload, "invalid event payload").
			WithDetail("validation_errors", issues)
	}

	if latest.Revision != req.ExpectedRevision {
		return nil, revisionConflict(latest.Revision, req.ExpectedRevision)
	}

	event := p.EventByName(req.Event)
	if event == nil {
		return nil, NewError(CodeInvalidEvent, "process %s defines no event %q", p.ID, req.Event)
	}
	if d := role.CheckEvent(req.Role, event); !d.Allowed {
		return nil, NewError(CodeForbidden, "%s", d.Reason)
	}

	cumulative := unionPaths(latest.ArtifactPaths, req.ArtifactPaths)
	selected, selErr := selectTransition(p, latest.State, event, req.Role, guard.EvalContext{
		ArtifactPaths:    cumulative,
		ContextVars:      m.Context,
		ArtifactBasePath: m.ArtifactBasePath,
	})
	if selErr != nil {
		return nil, selErr
	}

	eventID, err := runid.NewEventID()
	if err != nil {
		return nil, NewError(CodeInternal, "%v", err)
	}

	entry := runlog.Entry{
		Timestamp:      e.now().UTC(),
		State:          selected.To,
		Revision:       req.ExpectedRevision + 1,
		Event:          req.Event,
		IdempotencyKey: req.IdempotencyKey,
		ArtifactPaths:  cumulative,
	}
	result, err := e.logs.AppendWithRevisionCheck(req.RunID, entry, req.ExpectedRevision)
	if err != nil {
		return nil, NewError(CodeInternal, "failed to commit event: %v", err)
	}
	if result.Conflict {
		return nil, revisionConflict(result.CurrentRevision, req.ExpectedRevision)
	}

	// The context merge is deferred until after the commit. A failure here
	// returns INTERNAL_ERROR while the committed row stands; retrying with
	// the same idempotency key replays as success, which is the intended
	// recovery path.
	if len(req.Payload) > 0 {
		if err := e.mergeContext(m, req.Payload); err != nil {
			return nil, err
		}
	}

	engineLog.Printf("accepted event: run=%s, event=%s, %s -> %s, revision=%d",
		req.RunID, req.Event, latest.State, selected.To, entry.Revision)

	res := &EmitResult{
		EventID:     eventID,
		Accepted:    true,
		Transition:  &TransitionTaken{From: latest.State, To: selected.To},
		NewRevision: entry.Revision,
	}
	if target := p.StateByName(selected.To); target != nil {
		res.NewStatePrompt = target.Prompt
	}
	return res, nil
}

func revisionConflict(current, expected int) *Error {
	return NewError(CodeRevisionConflict, "expected revision %d but run is at revision %d", expected, current).
		WithDetail("current_revision", current).
		WithDetail("expected_revision", expected)
}

func validateArtifactPaths(paths []string) []ValidationIssue {
	var issues []ValidationIssue
	for i, p := range paths {
		if err := artifact.ValidatePath(p); err != nil {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("/artifact_paths/%d", i),
				Message: err.Error(),
			})
		}
	}
	return issues
}

// validatePayloadShape checks the payload against the event's declared
// payload_schema. Schema enforcement is limited to the top-level shape for
// now; a declared schema requires the payload to be a JSON object, which
// the map type already guarantees.
func validatePayloadShape(event *process.EventDefinition, payload map[string]any) []ValidationIssue {
	return nil
}

// selectTransition picks the edge an event fires. Guarded transitions are
// considered first, in definition order, skipping those the role may not
// take; the first satisfied guard wins. With no guard satisfied, the first
// role-allowed guardless transition wins. When nothing is eligible, the
// error is GUARD_FAILED if a guard was evaluated and failed (the last
// failure evaluated, for diagnostics), FORBIDDEN otherwise.
func selectTransition(p *process.Process, state string, event *process.EventDefinition, callerRole string, ctx guard.EvalContext) (*process.Transition, *Error) {
	candidates := p.TransitionsFrom(state, event.Name)
	if len(candidates) == 0 {
		return nil, NewError(CodeInvalidEvent, "no transition from state %q on event %q", state, event.Name)
	}

	var lastFailedGuard string
	var lastFailedReasons []string
	roleBlocked := false

	for i := range candidates {
		t := &candidates[i]
		if t.Guard == "" {
			continue
		}
		if d := role.CheckTransition(callerRole, *t); !d.Allowed {
			roleBlocked = true
			continue
		}
		result := guard.EvaluateTransitionGuard(p, t.Guard, ctx)
		if result.Satisfied {
			return t, nil
		}
		lastFailedGuard = t.Guard
		lastFailedReasons = result.Reasons
	}

	for i := range candidates {
		t := &candidates[i]
		if t.Guard != "" {
			continue
		}
		if d := role.CheckTransition(callerRole, *t); !d.Allowed {
			roleBlocked = true
			continue
		}
		return t, nil
	}

	if lastFailedGuard != "" {
		return nil, NewError(CodeGuardFailed, "guard %q is not satisfied", lastFailedGuard).
			WithDetail("guard_name", lastFailedGuard).
			WithDetail("missing_requirements", lastFailedReasons)
	}
	if roleBlocked {
		return nil, NewError(CodeForbidden, "role %q is not permitted on any transition from %q on event %q",
			callerRole, state, event.Name)
	}
	// Candidates existed but every one was guarded and role-blocked or
	// similar; static validation makes this unreachable for valid
	// definitions.
	return nil, NewError(CodeGuardFailed, "no eligible transition from %q on event %q", state, event.Name)
}

// mergeContext overlays the payload onto the run's context, payload
// winning per key, and persists the sidecar.
func (e *Engine) mergeContext(m *metadata.RunMetadata, payload map[string]any) *Error {
	for k, v := range payload {
		m.Context[k] = v
	}
	if err := e.meta.Save(m); err != nil {
		return NewError(CodeInternal, "event committed but context merge failed: %v", err)
	}
	return nil
}

// unionPaths appends the new paths to the cumulative set, preserving first
// occurrence order and dropping duplicates.
func unionPaths(existing, added []string) []string {
	if len(added) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, p := range existing {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range added {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
