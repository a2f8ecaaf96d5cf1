package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// NewNewCommand creates the new command, which starts a run.
func NewNewCommand() *cobra.Command {
	var contextPairs []string
	var contextJSON string
	var role string
	var use bool

	cmd := &cobra.Command{
		Use:   "new <process-id>",
		Short: "Start a new run of a process",
		Long: `Start a new run of the named process. The run begins in the process's
initial state at revision 1, with the process's initial_context overlaid
by any --context entries.

With --use the new run becomes the default for later commands (the same
effect as 'state-gate use <run-id>' afterwards).

Examples:
  state-gate new doc-review
  state-gate new doc-review --context ticket=T-42 --use --role agent
  state-gate new doc-review --context-json '{"attempt": 2}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newRun(args[0], contextPairs, contextJSON, role, use)
		},
	}

	cmd.Flags().StringArrayVar(&contextPairs, "context", nil, "Initial context entry as key=value (repeatable)")
	cmd.Flags().StringVar(&contextJSON, "context-json", "", "Initial context as a JSON object (merged over --context)")
	cmd.Flags().StringVar(&role, "role", "", "Role to record in the default-run pointer (with --use)")
	cmd.Flags().BoolVar(&use, "use", false, "Make the new run the default for later commands")
	return cmd
}

func newRun(processID string, contextPairs []string, contextJSON, role string, use bool) error {
	context, err := parseKeyValues(contextPairs)
	if err != nil {
		return err
	}
	typed, err := parseJSONObject(contextJSON, "context-json")
	if err != nil {
		return err
	}
	for k, v := range typed {
		if context == nil {
			context = map[string]any{}
		}
		context[k] = v
	}

	created, err := newEngine().CreateRun(processID, context)
	if err != nil {
		return renderEngineError(err)
	}

	fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("Started run of %s in state %q (revision %d)",
		created.ProcessID, created.InitialState, created.Revision)))
	fmt.Println(created.RunID)

	if use {
		if err := writeCurrentRun(dirFlag, currentRun{RunID: created.RunID, Role: role}); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Run set as default"))
	} else {
		fmt.Fprintln(os.Stderr, console.FormatCommandMessage("state-gate use "+created.RunID))
	}
	return nil
}
