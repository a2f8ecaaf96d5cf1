package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/constants"
	"github.com/CAPHTECH/state-gate-sub000/pkg/fileutil"
)

const sampleProcessID = "doc-review"

const sampleProcessDefinition = `# Sample process definition. A run of this process starts in "draft",
# moves to "review" once a document artifact is attached, and finishes
# when a reviewer approves.
#
# Validate with:  state-gate validate
# Start a run:    state-gate new doc-review
id: doc-review
version: "1.0"
initial_state: draft

initial_context:
  phase: drafting

states:
  - name: draft
    prompt: Write the document, attach it as an artifact, then emit "submit".
    tools:
      allowed: ["Edit", "Write", "Read"]
      denied: ["Bash"]
      default: ask
  - name: review
    prompt: A reviewer must approve or reject the document.
    required_artifacts: [document]
  - name: done
    is_final: true

events:
  - name: submit
    allowed_roles: [agent]
  - name: approve
    allowed_roles: [reviewer]
  - name: reject
    allowed_roles: [reviewer]

transitions:
  - from: draft
    event: submit
    to: review
    guard: has_document
  - from: review
    event: approve
    to: done
  - from: review
    event: reject
    to: draft

guards:
  has_document:
    type: artifact_exists
    artifact_type: document

artifacts:
  - type: document
    description: The document under review

roles:
  - name: agent
    description: The autonomous agent doing the work
  - name: reviewer
    description: A human (or privileged agent) signing work off
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold the .state_gate directory tree",
		Long: `Scaffold the .state_gate directory tree in the target directory:

  .state_gate/
    runs/        # append-only run logs (one CSV file per run)
    metadata/    # per-run context sidecars
    artifacts/   # per-run artifact trees
    processes/   # process definitions (<id>.yaml)

A commented sample process definition is written to processes/ unless one
with the same name already exists.

Examples:
  state-gate init            # Scaffold in the current directory
  state-gate init -C ./repo  # Scaffold in ./repo
  state-gate init --force    # Skip the confirmation when .state_gate exists`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initGateDir(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-initialize without confirmation when .state_gate already exists")
	return cmd
}

func initGateDir(force bool) error {
	gateDir := constants.GetGateDir(dirFlag)

	if fileutil.DirExists(gateDir) && !force {
		confirmed, err := console.ConfirmAction(
			fmt.Sprintf("%s already exists. Re-initialize it?", gateDir),
			"Re-initialize", "Cancel")
		if err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !confirmed {
			fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Init cancelled"))
			return nil
		}
	}

	dirs := []string{
		constants.GetRunsDir(dirFlag),
		constants.GetMetadataDir(dirFlag),
		filepath.Join(gateDir, constants.ArtifactsDirName),
		constants.GetProcessesDir(dirFlag),
	}
	for _, dir := range dirs {
		if err := fileutil.EnsureDir(dir); err != nil {
			return err
		}
	}

	samplePath := filepath.Join(constants.GetProcessesDir(dirFlag), sampleProcessID+".yaml")
	if !fileutil.FileExists(samplePath) {
		if err := os.WriteFile(samplePath, []byte(sampleProcessDefinition), 0o644); err != nil {
			return fmt.Errorf("failed to write sample process definition: %w", err)
		}
		fmt.Println(console.FormatSuccessMessage("Wrote sample process definition"))
		fmt.Println(console.FormatLocationMessage(console.ToRelativePath(samplePath)))
	}

	fmt.Println(console.FormatSuccessMessage("Initialized " + console.ToRelativePath(gateDir)))
	fmt.Println(console.FormatCommandMessage("state-gate new " + sampleProcessID + "   # start a run"))
	return nil
}
