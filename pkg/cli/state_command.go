package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// NewStateCommand creates the state command.
func NewStateCommand() *cobra.Command {
	var runFlag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show a run's current state, revision, and context",
		Long: `Show where a run currently sits: state, revision, context variables,
unsatisfied guards on outgoing transitions, required artifacts, and the
events that could fire right now.

Examples:
  state-gate state
  state-gate state --run run-0192d5c0-5e1a-7cc3-8f4e-3a2b1c0d9e8f
  state-gate state --json   # machine-readable output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showState(runFlag, asJSON)
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run id (defaults to the run selected with 'use')")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full projection as JSON")
	return cmd
}

func showState(runFlag string, asJSON bool) error {
	runID, err := resolveRun(runFlag)
	if err != nil {
		return err
	}
	state, err := newEngine().GetState(runID)
	if err != nil {
		return renderEngineError(err)
	}

	if asJSON {
		data, err := json.MarshalIndent(state, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println(console.FormatSectionHeader(fmt.Sprintf("%s (%s v%s)", state.RunID, state.ProcessID, state.ProcessVersion)))

	position := fmt.Sprintf("State %q at revision %d", state.CurrentState, state.Revision)
	if state.IsFinal {
		position += " (final)"
	}
	fmt.Println(console.FormatInfoMessage(position))
	if state.CurrentStatePrompt != "" {
		fmt.Println("  " + state.CurrentStatePrompt)
	}

	if len(state.Context) > 0 {
		fmt.Println(console.FormatListHeader("Context:"))
		for k, v := range state.Context {
			fmt.Println(console.FormatListItem(fmt.Sprintf("%s = %v", k, v)))
		}
	}

	if len(state.RequiredArtifacts) > 0 {
		fmt.Println(console.FormatListHeader("Required artifacts:"))
		for _, a := range state.RequiredArtifacts {
			fmt.Println(console.FormatListItem(a))
		}
	}

	if len(state.MissingGuards) > 0 {
		fmt.Println(console.FormatListHeader("Unsatisfied guards:"))
		for _, g := range state.MissingGuards {
			fmt.Println(console.FormatListItem(g))
		}
	}

	if len(state.AllowedEvents) > 0 {
		fmt.Println(console.FormatListHeader("Events ready to fire:"))
		fmt.Println(console.FormatListItem(strings.Join(state.AllowedEvents, ", ")))
	} else if !state.IsFinal {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage("No event can fire from here; see 'state-gate events --all'"))
	}
	return nil
}
