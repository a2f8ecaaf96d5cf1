package process

import (
	"fmt"
	"strings"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var validatorLog = logger.New("process:validator")

// ValidationCode identifies one kind of static integrity failure.
type ValidationCode string

// The closed set of validation error codes.
const (
	CodeDuplicateStateName    ValidationCode = "DUPLICATE_STATE_NAME"
	CodeDuplicateEventName    ValidationCode = "DUPLICATE_EVENT_NAME"
	CodeDuplicateRoleName     ValidationCode = "DUPLICATE_ROLE_NAME"
	CodeDuplicateArtifactType ValidationCode = "DUPLICATE_ARTIFACT_TYPE"
	CodeInvalidInitialState   ValidationCode = "INVALID_INITIAL_STATE"
	CodeInvalidTransitionFrom ValidationCode = "INVALID_TRANSITION_FROM"
	CodeInvalidTransitionTo   ValidationCode = "INVALID_TRANSITION_TO"
	CodeInvalidTransitionEvt  ValidationCode = "INVALID_TRANSITION_EVENT"
	CodeInvalidGuardRef       ValidationCode = "INVALID_GUARD_REF"
	CodeInvalidGuardType      ValidationCode = "INVALID_GUARD_TYPE"
	CodeInvalidGuardArtifact  ValidationCode = "INVALID_GUARD_ARTIFACT_TYPE"
	CodeInvalidRoleRef        ValidationCode = "INVALID_ROLE_REF"
	CodeInvalidRequiredArt    ValidationCode = "INVALID_REQUIRED_ARTIFACT"
	CodeNoFinalState          ValidationCode = "NO_FINAL_STATE"
	CodeUnreachableState      ValidationCode = "UNREACHABLE_STATE"
	CodeInvalidWildcardRole   ValidationCode = "INVALID_WILDCARD_ROLE"
	CodeInvalidMinCount       ValidationCode = "INVALID_MIN_COUNT"
)

// ValidationError is one static integrity failure. Path is a JSON Pointer
// into the process definition.
type ValidationError struct {
	Code    ValidationCode `json:"code"`
	Path    string         `json:"path"`
	Message string         `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

// Validate runs every static check against p. A nil return means p is
// suitable for registry insertion. Validation is total: all errors are
// collected, each at most once; their order is not guaranteed.
func Validate(p *Process) []ValidationError {
	v := &validator{process: p}
	v.checkUniqueNames()
	v.checkInitialState()
	v.checkTransitions()
	v.checkGuards()
	v.checkStates()
	v.checkEventRoles()
	v.checkFinalState()
	v.checkReachability()
	validatorLog.Printf("validated process %s: errors=%d", p.ID, len(v.errors))
	return v.errors
}

type validator struct {
	process *Process
	errors  []ValidationError
}

func (v *validator) addError(code ValidationCode, path, format string, args ...any) {
	v.errors = append(v.errors, ValidationError{
		Code:    code,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) checkUniqueNames() {
	seenStates := map[string]bool{}
	for i, s := range v.process.States {
		if seenStates[s.Name] {
			v.addError(CodeDuplicateStateName, fmt.Sprintf("/states/%d/name", i), "duplicate state name %q", s.Name)
		}
		seenStates[s.Name] = true
	}

	seenEvents := map[string]bool{}
	for i, e := range v.process.Events {
		if seenEvents[e.Name] {
			v.addError(CodeDuplicateEventName, fmt.Sprintf("/events/%d/name", i), "duplicate event name %q", e.Name)
		}
		seenEvents[e.Name] = true
	}

	seenRoles := map[string]bool{}
	for i, r := range v.process.Roles {
		if seenRoles[r.Name] {
			v.addError(CodeDuplicateRoleName, fmt.Sprintf("/roles/%d/name", i), "duplicate role name %q", r.Name)
		}
		seenRoles[r.Name] = true
	}

	seenArtifacts := map[string]bool{}
	for i, a := range v.process.Artifacts {
		if seenArtifacts[a.Type] {
			v.addError(CodeDuplicateArtifactType, fmt.Sprintf("/artifacts/%d/type", i), "duplicate artifact type %q", a.Type)
		}
		seenArtifacts[a.Type] = true
	}
}

func (v *validator) stateNames() map[string]bool {
	names := map[string]bool{}
	for _, s := range v.process.States {
		names[s.Name] = true
	}
	return names
}

func (v *validator) eventNames() map[string]bool {
	names := map[string]bool{}
	for _, e := range v.process.Events {
		names[e.Name] = true
	}
	return names
}

func (v *validator) roleNames() map[string]bool {
	names := map[string]bool{}
	for _, r := range v.process.Roles {
		names[r.Name] = true
	}
	return names
}

func (v *validator) artifactTypes() map[string]bool {
	types := map[string]bool{}
	for _, a := range v.process.Artifacts {
		types[a.Type] = true
	}
	return types
}

func (v *validator) checkInitialState() {
	if !v.stateNames()[v.process.InitialState] {
		v.addError(CodeInvalidInitialState, "/initial_state", "initial_state %q is not a defined state", v.process.InitialState)
	}
}

func (v *validator) checkTransitions() {
	states := v.stateNames()
	events := v.eventNames()
	for i, t := range v.process.Transitions {
		base := fmt.Sprintf("/transitions/%d", i)
		if !states[t.From] {
			v.addError(CodeInvalidTransitionFrom, base+"/from", "transition from undefined state %q", t.From)
		}
		if !states[t.To] {
			v.addError(CodeInvalidTransitionTo, base+"/to", "transition to undefined state %q", t.To)
		}
		if !events[t.Event] {
			v.addError(CodeInvalidTransitionEvt, base+"/event", "transition on undefined event %q", t.Event)
		}
		if t.Guard != "" {
			if _, ok := v.process.Guards[t.Guard]; !ok {
				v.addError(CodeInvalidGuardRef, base+"/guard", "transition references undefined guard %q", t.Guard)
			}
		}
		v.checkRoleList(t.AllowedRoles, base+"/allowed_roles")
	}
}

func (v *validator) checkGuards() {
	artifacts := v.artifactTypes()
	for name, g := range v.process.Guards {
		base := "/guards/" + escapePointerToken(name)
		if !guardTypes[g.Type] {
			v.addError(CodeInvalidGuardType, base+"/type", "unknown guard type %q", g.Type)
			continue
		}
		if g.IsArtifactGuard() && !artifacts[g.ArtifactType] {
			v.addError(CodeInvalidGuardArtifact, base+"/artifact_type", "guard %q references undefined artifact type %q", name, g.ArtifactType)
		}
		if g.Type == GuardArtifactCount && g.MinCount != nil && *g.MinCount < 0 {
			v.addError(CodeInvalidMinCount, base+"/min_count", "guard %q has negative min_count %d", name, *g.MinCount)
		}
	}
}

func (v *validator) checkStates() {
	artifacts := v.artifactTypes()
	for i, s := range v.process.States {
		for j, req := range s.RequiredArtifacts {
			if !artifacts[req] {
				v.addError(CodeInvalidRequiredArt, fmt.Sprintf("/states/%d/required_artifacts/%d", i, j), "state %q requires undefined artifact type %q", s.Name, req)
			}
		}
	}
}

func (v *validator) checkEventRoles() {
	for i, e := range v.process.Events {
		v.checkRoleList(e.AllowedRoles, fmt.Sprintf("/events/%d/allowed_roles", i))
	}
}

// checkRoleList rejects a wildcard mixed with concrete names and verifies
// concrete names are defined roles.
func (v *validator) checkRoleList(roles []string, path string) {
	if len(roles) == 0 {
		return
	}
	hasWildcard := false
	hasConcrete := false
	defined := v.roleNames()
	for i, r := range roles {
		if r == constants.WildcardRole {
			hasWildcard = true
			continue
		}
		hasConcrete = true
		if !defined[r] {
			v.addError(CodeInvalidRoleRef, fmt.Sprintf("%s/%d", path, i), "undefined role %q", r)
		}
	}
	if hasWildcard && hasConcrete {
		v.addError(CodeInvalidWildcardRole, path, "allowed_roles must not mix %q with concrete role names", constants.WildcardRole)
	}
}

func (v *validator) checkFinalState() {
	for _, s := range v.process.States {
		if s.IsFinal {
			return
		}
	}
	v.addError(CodeNoFinalState, "/states", "process has no final state")
}

// checkReachability walks the transition graph breadth-first from the
// initial state and reports states the walk never visits.
func (v *validator) checkReachability() {
	states := v.stateNames()
	if !states[v.process.InitialState] {
		// Already reported; a reachability walk would flag everything.
		return
	}

	edges := map[string][]string{}
	for _, t := range v.process.Transitions {
		edges[t.From] = append(edges[t.From], t.To)
	}

	visited := map[string]bool{v.process.InitialState: true}
	queue := []string{v.process.InitialState}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range edges[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}

	for i, s := range v.process.States {
		if !visited[s.Name] {
			v.addError(CodeUnreachableState, fmt.Sprintf("/states/%d", i), "state %q is unreachable from %q", s.Name, v.process.InitialState)
		}
	}
}

// escapePointerToken applies RFC 6901 escaping for map keys in paths.
func escapePointerToken(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}
