package role

import (
	"testing"

	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

func TestCheckEvent(t *testing.T) {
	event := &process.EventDefinition{Name: "submit", AllowedRoles: []string{"agent", "reviewer"}}

	if d := CheckEvent("agent", event); !d.Allowed {
		t.Errorf("agent should be allowed: %s", d.Reason)
	}
	if d := CheckEvent("stranger", event); d.Allowed {
		t.Error("stranger should be denied")
	} else if d.Reason == "" {
		t.Error("denial should carry a reason")
	}

	wildcard := &process.EventDefinition{Name: "ping", AllowedRoles: []string{"*"}}
	if d := CheckEvent("anyone", wildcard); !d.Allowed {
		t.Error("wildcard should permit every role")
	}
}

func TestCheckTransition(t *testing.T) {
	unrestricted := process.Transition{From: "a", Event: "go", To: "b"}
	if d := CheckTransition("anyone", unrestricted); !d.Allowed {
		t.Error("transition without allowed_roles permits every role")
	}

	restricted := process.Transition{From: "a", Event: "go", To: "b", AllowedRoles: []string{"reviewer"}}
	if d := CheckTransition("reviewer", restricted); !d.Allowed {
		t.Errorf("reviewer should pass: %s", d.Reason)
	}
	if d := CheckTransition("agent", restricted); d.Allowed {
		t.Error("agent should be denied on restricted transition")
	}
}

func TestCheckFullShortCircuitsOnEvent(t *testing.T) {
	event := &process.EventDefinition{Name: "submit", AllowedRoles: []string{"reviewer"}}
	transition := process.Transition{From: "a", Event: "submit", To: "b", AllowedRoles: []string{"*"}}

	d := CheckFull("agent", event, transition)
	if d.Allowed {
		t.Error("event denial must win even when the transition is open")
	}

	d = CheckFull("reviewer", event, transition)
	if !d.Allowed {
		t.Errorf("reviewer should pass both checks: %s", d.Reason)
	}
}
