package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// NewEventsCommand creates the events command.
func NewEventsCommand() *cobra.Command {
	var runFlag string
	var all bool

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the events that can fire from a run's current state",
		Long: `List the events with a transition from the run's current state. By
default only events whose guard is satisfied are shown; --all includes
blocked events with the reason each guard gave.

Examples:
  state-gate events
  state-gate events --all`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listEvents(runFlag, all)
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run id (defaults to the run selected with 'use')")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include blocked events with their reasons")
	return cmd
}

func listEvents(runFlag string, all bool) error {
	runID, err := resolveRun(runFlag)
	if err != nil {
		return err
	}
	result, err := newEngine().ListEvents(runID, all)
	if err != nil {
		return renderEngineError(err)
	}

	if len(result.Events) == 0 {
		fmt.Println(console.FormatInfoMessage(fmt.Sprintf("No events available from state %q", result.CurrentState)))
		return nil
	}

	fmt.Println(console.FormatListHeader(fmt.Sprintf("Events from state %q:", result.CurrentState)))
	for _, e := range result.Events {
		if e.Allowed {
			fmt.Println(console.FormatListItem(console.FormatSuccessMessage(e.Name)))
		} else {
			fmt.Println(console.FormatListItem(console.FormatErrorMessage(e.Name + "  (" + e.Reason + ")")))
		}
	}
	return nil
}
