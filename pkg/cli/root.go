// Package cli implements the state-gate command tree: run lifecycle
// commands, definition validation, the MCP server, and the tool-call hook
// adapter. Commands translate between the terminal and the engine; no
// gating decision lives here.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var cliLog = logger.New("cli:root")

var version = "dev"

// SetVersion records the build-time version for --version and the MCP
// server implementation info.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// GetVersion returns the recorded build version.
func GetVersion() string {
	return version
}

// dirFlag is the persistent root-directory flag shared by every command.
var dirFlag string

// NewRootCommand assembles the full command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "state-gate",
		Short:   "Declarative state-machine gate for autonomous agent runs",
		Version: GetVersion(),
		Long: `State Gate keeps autonomous agents honest: every run follows a declared
finite-state process, and every transition is checked against guards,
roles, and an optimistic revision before it is committed to an
append-only log.

Common tasks:
  state-gate init                    # Scaffold .state_gate/ in this directory
  state-gate validate                # Check every process definition
  state-gate new doc-review          # Start a run of the doc-review process
  state-gate emit submit --role agent --artifact document.md
  state-gate state                   # Where is the current run?
  state-gate events --all            # What could fire, and what is blocked?
  state-gate history                 # Full audit log of the run

For detailed help on any command, use:
  state-gate [command] --help`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "C", ".", "Directory containing (or receiving) the .state_gate tree")

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewNewCommand())
	rootCmd.AddCommand(NewEmitCommand())
	rootCmd.AddCommand(NewStateCommand())
	rootCmd.AddCommand(NewEventsCommand())
	rootCmd.AddCommand(NewRunsCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewUseCommand())
	rootCmd.AddCommand(NewMCPServerCommand())
	rootCmd.AddCommand(NewHookCommand())

	return rootCmd
}

// newEngine builds an engine for the configured root directory.
func newEngine() *engine.Engine {
	cliLog.Printf("creating engine for dir: %s", dirFlag)
	return engine.New(dirFlag)
}
