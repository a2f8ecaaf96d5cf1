// Package guard evaluates transition guards against a run's artifact set
// and context variables.
//
// Context predicates follow a deliberately asymmetric rule for missing
// variables: a variable that is not defined leaves EVERY comparison
// predicate unsatisfied, including the negated ones (context_not_equals,
// context_not_in). Those predicates assert "the variable is defined and its
// value differs", not "the value is unknown". Only context_not_exists is
// satisfied by a missing variable, and context_exists treats an explicit
// null as present.
package guard

import (
	"fmt"

	"github.com/CAPHTECH/state-gate-sub000/pkg/artifact"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

var evalLog = logger.New("guard:evaluator")

// EvalContext is everything a guard may inspect: the run's cumulative
// artifact paths, its context variables, and the base the artifact paths
// resolve under.
type EvalContext struct {
	ArtifactPaths    []string
	ContextVars      map[string]any
	ArtifactBasePath string
}

// Result reports whether a guard held, with human-readable reasons when it
// did not.
type Result struct {
	Satisfied bool
	Reasons   []string
}

func satisfied() Result { return Result{Satisfied: true} }

func unsatisfied(format string, args ...any) Result {
	return Result{Reasons: []string{fmt.Sprintf(format, args...)}}
}

// Evaluate runs a single guard against the context.
func Evaluate(g process.Guard, ctx EvalContext) Result {
	switch g.Type {
	case process.GuardArtifactExists:
		return evalArtifactExists(g, ctx)
	case process.GuardArtifactCount:
		return evalArtifactCount(g, ctx)
	case process.GuardContextEquals:
		return evalContextCompare(g, ctx, true)
	case process.GuardContextNotEquals:
		return evalContextCompare(g, ctx, false)
	case process.GuardContextIn:
		return evalContextMembership(g, ctx, true)
	case process.GuardContextNotIn:
		return evalContextMembership(g, ctx, false)
	case process.GuardContextExists:
		if _, ok := ctx.ContextVars[g.Var]; !ok {
			return unsatisfied("context variable %q is not defined", g.Var)
		}
		return satisfied()
	case process.GuardContextNotExists:
		if _, ok := ctx.ContextVars[g.Var]; ok {
			return unsatisfied("context variable %q is defined", g.Var)
		}
		return satisfied()
	default:
		// Static validation rejects unknown tags; reaching this is a bug,
		// reported as an unsatisfied guard rather than a crash.
		evalLog.Printf("unknown guard type %q reached evaluation", g.Type)
		return unsatisfied("unknown guard type %q", g.Type)
	}
}

// EvaluateTransitionGuard resolves an optional guard name on a transition.
// An empty name is trivially satisfied; an undefined name is unsatisfied
// (static validation should have prevented it) rather than a runtime error.
func EvaluateTransitionGuard(p *process.Process, guardName string, ctx EvalContext) Result {
	if guardName == "" {
		return satisfied()
	}
	g, ok := p.GuardByName(guardName)
	if !ok {
		evalLog.Printf("transition references undefined guard %q in process %s", guardName, p.ID)
		return unsatisfied("guard not defined: %q", guardName)
	}
	return Evaluate(g, ctx)
}

func evalArtifactExists(g process.Guard, ctx EvalContext) Result {
	checker := artifact.NewChecker(ctx.ArtifactBasePath)
	if checker.AnyPresentOfType(ctx.ArtifactPaths, g.ArtifactType) {
		return satisfied()
	}
	return unsatisfied("artifact of type %q not found", g.ArtifactType)
}

func evalArtifactCount(g process.Guard, ctx EvalContext) Result {
	min := 0
	if g.MinCount != nil {
		min = *g.MinCount
	}
	if min == 0 {
		// Vacuously satisfied, no probe needed.
		return satisfied()
	}
	checker := artifact.NewChecker(ctx.ArtifactBasePath)
	count := checker.CountPresentOfType(ctx.ArtifactPaths, g.ArtifactType)
	if count >= min {
		return satisfied()
	}
	return unsatisfied("found %d artifact(s) of type %q, need at least %d", count, g.ArtifactType, min)
}

func evalContextCompare(g process.Guard, ctx EvalContext, wantEqual bool) Result {
	value, ok := ctx.ContextVars[g.Var]
	if !ok {
		return unsatisfied("context variable %q is not defined", g.Var)
	}
	equal := primitiveEqual(value, g.Value)
	if equal == wantEqual {
		return satisfied()
	}
	if wantEqual {
		return unsatisfied("context variable %q is %v, expected %v", g.Var, value, g.Value)
	}
	return unsatisfied("context variable %q must not be %v", g.Var, g.Value)
}

func evalContextMembership(g process.Guard, ctx EvalContext, wantMember bool) Result {
	value, ok := ctx.ContextVars[g.Var]
	if !ok {
		return unsatisfied("context variable %q is not defined", g.Var)
	}
	member := false
	for _, candidate := range g.Values {
		if primitiveEqual(value, candidate) {
			member = true
			break
		}
	}
	if member == wantMember {
		return satisfied()
	}
	if wantMember {
		return unsatisfied("context variable %q is %v, expected one of %v", g.Var, value, g.Values)
	}
	return unsatisfied("context variable %q must not be one of %v", g.Var, g.Values)
}

// primitiveEqual compares scalar values across the numeric representations
// produced by the JSON and YAML decoders (float64, int, int64, uint64).
func primitiveEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
