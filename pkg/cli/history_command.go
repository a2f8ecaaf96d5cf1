package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var runFlag string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a run's full event log",
		Long: `Show every row of a run's append-only log in order: the synthetic init
row, then one row per accepted event with the state entered, the
revision, the idempotency key, and the cumulative artifact paths.

Examples:
  state-gate history
  state-gate history --run run-0192d5c0-5e1a-7cc3-8f4e-3a2b1c0d9e8f`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(runFlag)
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run id (defaults to the run selected with 'use')")
	return cmd
}

func showHistory(runFlag string) error {
	runID, err := resolveRun(runFlag)
	if err != nil {
		return err
	}
	entries, err := newEngine().GetEventHistory(runID)
	if err != nil {
		return renderEngineError(err)
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Revision),
			e.Timestamp.Local().Format(time.DateTime),
			e.Event,
			e.State,
			strings.Join(e.ArtifactPaths, ", "),
		})
	}

	fmt.Print(console.RenderTable(console.TableConfig{
		Title:   runID,
		Headers: []string{"Rev", "Time", "Event", "State", "Artifacts"},
		Rows:    rows,
	}))
	return nil
}
