// Package role evaluates caller roles against event and transition
// permission lists. Roles are trusted input: the gate checks membership,
// not identity.
package role

import (
	"fmt"
	"slices"

	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

// Decision is the outcome of a permission check. Reason is set only on
// denial and is suitable for surfacing to the caller.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// CheckEvent allows when the event's allowed_roles contains the wildcard or
// the caller's role.
func CheckEvent(callerRole string, event *process.EventDefinition) Decision {
	if slices.Contains(event.AllowedRoles, constants.WildcardRole) ||
		slices.Contains(event.AllowedRoles, callerRole) {
		return allow()
	}
	return deny("role %q is not permitted to emit event %q (allowed: %v)", callerRole, event.Name, event.AllowedRoles)
}

// CheckTransition allows when the transition carries no allowed_roles of
// its own, or its list contains the wildcard or the caller's role.
func CheckTransition(callerRole string, transition process.Transition) Decision {
	if len(transition.AllowedRoles) == 0 {
		return allow()
	}
	if slices.Contains(transition.AllowedRoles, constants.WildcardRole) ||
		slices.Contains(transition.AllowedRoles, callerRole) {
		return allow()
	}
	return deny("role %q is not permitted on the transition %s -> %s (allowed: %v)",
		callerRole, transition.From, transition.To, transition.AllowedRoles)
}

// CheckFull is the conjunction of event and transition checks,
// short-circuiting on the event denial.
func CheckFull(callerRole string, event *process.EventDefinition, transition process.Transition) Decision {
	if d := CheckEvent(callerRole, event); !d.Allowed {
		return d
	}
	return CheckTransition(callerRole, transition)
}
