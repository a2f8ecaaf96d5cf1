package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/CAPHTECH/state-gate-sub000/pkg/guard"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
	"github.com/CAPHTECH/state-gate-sub000/pkg/registry"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runlog"
)

// GetState projects a run's current position: state, revision, context,
// plus the derived advisory fields (unsatisfied guards on outgoing
// transitions, required artifacts, currently fireable events). Role checks
// are not applied here; the projection answers "where is the run", not
// "what may this caller do".
func (e *Engine) GetState(runID string) (*StateResult, error) {
	m, latest, err := e.loadRun(runID)
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

	result := &StateResult{
		RunID:            runID,
		ProcessID:        p.ID,
		ProcessVersion:   p.Version,
		CurrentState:     latest.State,
		Revision:         latest.Revision,
		Context:          m.Context,
		MissingGuards:    []string{},
		AllowedEvents:    []string{},
		UpdatedAt:        latest.Timestamp,
		ArtifactBasePath: m.ArtifactBasePath,
	}
	if state := p.StateByName(latest.State); state != nil {
		result.CurrentStatePrompt = state.Prompt
		result.IsFinal = state.IsFinal
		result.RequiredArtifacts = state.RequiredArtifacts
		result.Tools = state.Tools
	}

	ctx := guard.EvalContext{
		ArtifactPaths:    latest.ArtifactPaths,
		ContextVars:      m.Context,
		ArtifactBasePath: m.ArtifactBasePath,
	}

	seenGuard := map[string]bool{}
	for _, t := range p.Transitions {
		if t.From != latest.State || t.Guard == "" || seenGuard[t.Guard] {
			continue
		}
		seenGuard[t.Guard] = true
		if r := guard.EvaluateTransitionGuard(p, t.Guard, ctx); !r.Satisfied {
			result.MissingGuards = append(result.MissingGuards,
				fmt.Sprintf("%s: %s", t.Guard, strings.Join(r.Reasons, "; ")))
		}
	}

	for _, info := range eventAvailability(p, latest.State, ctx) {
		if info.Allowed {
			result.AllowedEvents = append(result.AllowedEvents, info.Name)
		}
	}
	return result, nil
}

// ListEvents reports which events can fire from the run's current state.
// With includeBlocked, events whose transitions all fail their guards are
// listed too, each with the reason. Events with no transition from the
// current state are omitted entirely.
func (e *Engine) ListEvents(runID string, includeBlocked bool) (*ListEventsResult, error) {
	m, latest, err := e.loadRun(runID)
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

	ctx := guard.EvalContext{
		ArtifactPaths:    latest.ArtifactPaths,
		ContextVars:      m.Context,
		ArtifactBasePath: m.ArtifactBasePath,
	}

	result := &ListEventsResult{CurrentState: latest.State, Events: []EventInfo{}}
	for _, info := range eventAvailability(p, latest.State, ctx) {
		if info.Allowed || includeBlocked {
			result.Events = append(result.Events, info)
		}
	}
	return result, nil
}

// eventAvailability classifies, in event definition order, every event
// with at least one transition from the state: allowed when some
// transition is guardless or has a satisfied guard, blocked otherwise with
// the reasons of the failed guards.
func eventAvailability(p *process.Process, state string, ctx guard.EvalContext) []EventInfo {
	var infos []EventInfo
	for i := range p.Events {
		event := &p.Events[i]
		candidates := p.TransitionsFrom(state, event.Name)
		if len(candidates) == 0 {
			continue
		}

		allowed := false
		var reasons []string
		for _, t := range candidates {
			if t.Guard == "" {
				allowed = true
				break
			}
			r := guard.EvaluateTransitionGuard(p, t.Guard, ctx)
			if r.Satisfied {
				allowed = true
				break
			}
			reasons = append(reasons, fmt.Sprintf("%s: %s", t.Guard, strings.Join(r.Reasons, "; ")))
		}

		info := EventInfo{Name: event.Name, Allowed: allowed}
		if !allowed {
			info.Reason = strings.Join(reasons, "; ")
		}
		infos = append(infos, info)
	}
	return infos
}

// ListRuns summarizes every readable run, newest first. Runs whose
// metadata or log cannot be read are skipped with a log line rather than
// failing the whole listing.
func (e *Engine) ListRuns() ([]RunSummary, error) {
	ids, err := e.logs.ListRunIDs()
	if err != nil {
		return nil, NewError(CodeInternal, "failed to list runs: %v", err)
	}

	summaries := make([]RunSummary, 0, len(ids))
	for _, id := range ids {
		m, latest, err := e.loadRun(id)
		if err != nil {
			engineLog.Printf("skipping unreadable run %s: %v", id, err)
			continue
		}
		summaries = append(summaries, RunSummary{
			RunID:        id,
			ProcessID:    m.ProcessID,
			CurrentState: latest.State,
			Revision:     latest.Revision,
			CreatedAt:    m.CreatedAt,
			UpdatedAt:    latest.Timestamp,
		})
	}

	// Run ids embed a UUIDv7, so lexical order is creation order.
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RunID > summaries[j].RunID
	})
	return summaries, nil
}

// ListRunIDs enumerates run ids without loading their state, for callers
// that fan out the per-run loading themselves.
func (e *Engine) ListRunIDs() ([]string, error) {
	ids, err := e.logs.ListRunIDs()
	if err != nil {
		return nil, NewError(CodeInternal, "failed to list runs: %v", err)
	}
	return ids, nil
}

// GetEventHistory returns the run's full log in file order, the synthetic
// init row included.
func (e *Engine) GetEventHistory(runID string) (EventHistory, error) {
	if _, _, err := e.loadRun(runID); err != nil {
		return nil, err
	}
	entries, err := e.logs.ReadEntries(runID)
	if err != nil {
		if errors.Is(err, runlog.ErrRunNotFound) {
			return nil, NewError(CodeRunNotFound, "run not found: %s", runID)
		}
		return nil, NewError(CodeInternal, "failed to read run log: %v", err)
	}
	return entries, nil
}
