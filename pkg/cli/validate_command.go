package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
	"github.com/CAPHTECH/state-gate-sub000/pkg/parser"
	"github.com/CAPHTECH/state-gate-sub000/pkg/registry"
)

var validateLog = logger.New("cli:validate")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "validate [process-id...]",
		Short: "Validate process definitions",
		Long: `Validate process definitions against the schema and the static
integrity checks (unknown references, unreachable states, missing final
state, wildcard role misuse).

Without arguments every definition under .state_gate/processes is
checked. With --watch the command keeps running and re-validates a
definition whenever its file changes.

Examples:
  state-gate validate              # Validate everything
  state-gate validate doc-review   # Validate one process
  state-gate validate --watch      # Re-validate on every file change`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchDefinitions(args)
			}
			return validateDefinitions(args)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and re-validate definitions on change")
	return cmd
}

func validateDefinitions(ids []string) error {
	reg := registry.New(constants.GetProcessesDir(dirFlag))

	if len(ids) == 0 {
		var err error
		ids, err = reg.ListIDs()
		if err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		fmt.Fprintln(os.Stderr, console.FormatWarningMessage("No process definitions found. Run 'state-gate init' first."))
		return nil
	}

	failures := 0
	for _, id := range ids {
		if err := validateOne(id); err != nil {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d definition(s) failed validation", failures, len(ids))
	}
	fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("All %d definition(s) are valid", len(ids))))
	return nil
}

func validateOne(id string) error {
	path, err := findDefinition(id)
	if err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		return err
	}

	p, err := parser.LoadProcessFile(path)
	if err != nil {
		printDefinitionError(err)
		return err
	}

	fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("%s (version %s): %d states, %d events, %d transitions",
		p.ID, p.Version, len(p.States), len(p.Events), len(p.Transitions))))
	return nil
}

func findDefinition(id string) (string, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(constants.GetProcessesDir(dirFlag), id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no definition file for process %q", id)
}

// printDefinitionError renders a parse or validation failure, one line per
// static-check error with its JSON-Pointer path.
func printDefinitionError(err error) {
	var defErr *parser.DefinitionError
	if !errors.As(err, &defErr) {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		return
	}

	fmt.Fprintln(os.Stderr, console.FormatErrorMessage(fmt.Sprintf("%s: %s",
		console.ToRelativePath(defErr.Path), defErr.Message)))
	for _, v := range defErr.Validation {
		fmt.Fprintln(os.Stderr, console.FormatListItem(fmt.Sprintf("%s at %s: %s", v.Code, v.Path, v.Message)))
	}
}

// watchDefinitions validates once, then re-validates changed files until
// interrupted.
func watchDefinitions(ids []string) error {
	// Initial pass; failures are reported but do not stop the watch.
	if err := validateDefinitions(ids); err != nil {
		validateLog.Printf("initial validation: %v", err)
	}

	dir := constants.GetProcessesDir(dirFlag)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Watching "+console.ToRelativePath(dir)+" (ctrl-c to stop)"))

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	only := map[string]bool{}
	for _, id := range ids {
		only[id] = true
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ext := filepath.Ext(event.Name)
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			id := filepath.Base(event.Name[:len(event.Name)-len(ext)])
			if len(only) > 0 && !only[id] {
				continue
			}
			validateLog.Printf("definition changed: %s", event.Name)
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Changed: "+console.ToRelativePath(event.Name)))
			_ = validateOne(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			validateLog.Printf("watcher error: %v", err)
		case <-interrupt:
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Stopped watching"))
			return nil
		}
	}
}
