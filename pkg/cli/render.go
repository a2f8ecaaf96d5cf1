package cli

import (
	"fmt"
	"os"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
)

// renderEngineError prints the structured details of an engine error to
// stderr and passes the error through for the exit code. The one-line
// message itself is printed by main.
func renderEngineError(err error) error {
	engErr := engine.AsEngineError(err)

	switch engErr.Code {
	case engine.CodeRevisionConflict:
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage(fmt.Sprintf(
			"the run moved underneath you (current revision %v); re-read state and retry",
			engErr.Details["current_revision"])))
	case engine.CodeGuardFailed:
		if reqs, ok := engErr.Details["missing_requirements"].([]string); ok {
			for _, r := range reqs {
				fmt.Fprintln(os.Stderr, console.FormatListItem(r))
			}
		}
	case engine.CodeInvalidPayload:
		if issues, ok := engErr.Details["validation_errors"].([]engine.ValidationIssue); ok {
			for _, issue := range issues {
				fmt.Fprintln(os.Stderr, console.FormatListItem(issue.Path+": "+issue.Message))
			}
		}
	}
	return engErr
}
