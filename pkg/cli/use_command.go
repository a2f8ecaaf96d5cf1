package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// NewUseCommand creates the use command.
func NewUseCommand() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "use <run-id>",
		Short: "Select the default run for later commands",
		Long: `Write the default-run pointer (.state_gate/current_run.json). Commands
like emit, state, events, and history act on this run when --run is not
given; --role on the pointer plays the same part for permission checks.

Examples:
  state-gate use run-0192d5c0-5e1a-7cc3-8f4e-3a2b1c0d9e8f
  state-gate use run-0192d5c0-5e1a-7cc3-8f4e-3a2b1c0d9e8f --role reviewer`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := args[0]

			// Resolve the run before pointing at it so typos surface here.
			if _, err := newEngine().GetState(runID); err != nil {
				return renderEngineError(err)
			}
			if err := writeCurrentRun(dirFlag, currentRun{RunID: runID, Role: role}); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage("Default run set to " + runID))
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "Role to use for permission checks on this run")
	return cmd
}
