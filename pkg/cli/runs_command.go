package cli

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var runsLog = logger.New("cli:runs")

// maxSummaryLoaders bounds the goroutines loading run summaries in parallel.
const maxSummaryLoaders = 8

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List all runs with their current state",
		Long: `List every run under the gate directory with its process, current
state, revision, and last update time, newest first. Runs whose files
cannot be read are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns()
		},
	}
	return cmd
}

func listRuns() error {
	e := newEngine()

	ids, err := e.ListRunIDs()
	if err != nil {
		return renderEngineError(err)
	}
	if len(ids) == 0 {
		fmt.Println(console.FormatInfoMessage("No runs yet. Start one with 'state-gate new <process-id>'."))
		return nil
	}

	spinner := console.NewSpinner(fmt.Sprintf("Loading %d run(s)...", len(ids)))
	spinner.Start()

	// Each summary costs a metadata read plus a full log scan, so load them
	// with bounded parallelism.
	var mu sync.Mutex
	var states []*engine.StateResult
	p := pool.New().WithMaxGoroutines(maxSummaryLoaders)
	for _, id := range ids {
		p.Go(func() {
			state, err := e.GetState(id)
			if err != nil {
				runsLog.Printf("skipping unreadable run %s: %v", id, err)
				return
			}
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		})
	}
	p.Wait()
	spinner.Stop()

	// Run ids embed a UUIDv7, so sorting them descending is newest first.
	sort.Slice(states, func(i, j int) bool {
		return states[i].RunID > states[j].RunID
	})

	rows := make([][]string, 0, len(states))
	for _, s := range states {
		current := s.CurrentState
		if s.IsFinal {
			current += " (final)"
		}
		rows = append(rows, []string{
			s.RunID,
			s.ProcessID,
			current,
			fmt.Sprintf("%d", s.Revision),
			s.UpdatedAt.Local().Format(time.DateTime),
		})
	}

	fmt.Print(console.RenderTable(console.TableConfig{
		Title:   fmt.Sprintf("Runs (%d)", len(rows)),
		Headers: []string{"Run", "Process", "State", "Rev", "Updated"},
		Rows:    rows,
	}))
	return nil
}
