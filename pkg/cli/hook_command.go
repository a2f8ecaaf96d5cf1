package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/process"
)

var hookLog = logger.New("cli:hook")

// Hook decisions. "ask" defers to the surrounding harness (usually a
// human confirmation).
const (
	HookAllow = "allow"
	HookDeny  = "deny"
	HookAsk   = "ask"
)

// hookInput is the tool-call description read from stdin.
type hookInput struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
}

// hookOutput is the decision written to stdout.
type hookOutput struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
	RunID    string `json:"run_id,omitempty"`
	State    string `json:"state,omitempty"`
}

// NewHookCommand creates the hook command.
func NewHookCommand() *cobra.Command {
	var runFlag string

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Decide whether an agent tool call is allowed in the run's current state",
		Long: `Read a JSON tool-call description on stdin and print a JSON decision on
stdout, based on the tool policy of the run's current state:

  echo '{"tool_name": "Bash"}' | state-gate hook

Input:   {"tool_name": "...", "tool_input": {...}, "run_id": "..."}
Output:  {"decision": "allow|deny|ask", "reason": "...", "state": "..."}

The run comes from the input's run_id, the --run flag, or the default-run
pointer. Denied patterns win over allowed ones; a tool matching neither
list falls back to the state's default decision ("ask" when unset).
States without a tool policy allow everything.

The command always exits 0 with a decision; wire the decision, not the
exit code. Infrastructure failures degrade to "ask".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHook(cmd.InOrStdin(), cmd.OutOrStdout(), runFlag)
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run id (defaults to the run selected with 'use')")
	return cmd
}

func runHook(in io.Reader, out io.Writer, runFlag string) error {
	writeDecision := func(d hookOutput) error {
		hookLog.Printf("decision: tool call -> %s (%s)", d.Decision, d.Reason)
		return json.NewEncoder(out).Encode(d)
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return writeDecision(hookOutput{Decision: HookAsk, Reason: fmt.Sprintf("failed to read stdin: %v", err)})
	}
	var input hookInput
	if err := json.Unmarshal(data, &input); err != nil {
		return writeDecision(hookOutput{Decision: HookAsk, Reason: fmt.Sprintf("stdin is not a valid tool call: %v", err)})
	}
	if input.ToolName == "" {
		return writeDecision(hookOutput{Decision: HookAsk, Reason: "tool_name is missing"})
	}

	if input.RunID != "" {
		runFlag = input.RunID
	}
	runID, err := resolveRun(runFlag)
	if err != nil {
		return writeDecision(hookOutput{Decision: HookAsk, Reason: err.Error()})
	}

	state, err := newEngine().GetState(runID)
	if err != nil {
		return writeDecision(hookOutput{Decision: HookAsk, RunID: runID, Reason: fmt.Sprintf("failed to load run state: %v", err)})
	}

	decision, reason := evaluateToolPolicy(state.Tools, input.ToolName, state.CurrentState)
	return writeDecision(hookOutput{Decision: decision, Reason: reason, RunID: runID, State: state.CurrentState})
}

// evaluateToolPolicy applies a state's tool policy to one tool name.
// Patterns are shell globs matched against the whole name; deny wins over
// allow, and an unmatched tool falls back to the policy default.
func evaluateToolPolicy(policy *process.ToolPolicy, toolName, stateName string) (string, string) {
	if policy == nil {
		return HookAllow, fmt.Sprintf("state %q declares no tool policy", stateName)
	}

	if pattern, ok := matchAny(policy.Denied, toolName); ok {
		return HookDeny, fmt.Sprintf("tool %q is denied in state %q (pattern %q)", toolName, stateName, pattern)
	}
	if pattern, ok := matchAny(policy.Allowed, toolName); ok {
		return HookAllow, fmt.Sprintf("tool %q is allowed in state %q (pattern %q)", toolName, stateName, pattern)
	}

	fallback := policy.Default
	if fallback == "" {
		fallback = HookAsk
	}
	return fallback, fmt.Sprintf("tool %q matches no pattern in state %q, using default %q", toolName, stateName, fallback)
}

func matchAny(patterns []string, name string) (string, bool) {
	for _, pattern := range patterns {
		matched, err := path.Match(pattern, name)
		if err != nil {
			hookLog.Printf("skipping malformed tool pattern %q: %v", pattern, err)
			fmt.Fprintln(os.Stderr, "warning: malformed tool pattern "+pattern)
			continue
		}
		if matched {
			return pattern, true
		}
	}
	return "", false
}
