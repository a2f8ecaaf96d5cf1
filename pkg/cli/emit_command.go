package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
	"github.com/CAPHTECH/state-gate-sub000/pkg/runid"
)

// NewEmitCommand creates the emit command.
func NewEmitCommand() *cobra.Command {
	var runFlag string
	var role string
	var revision int
	var key string
	var payloadPairs []string
	var payloadJSON string
	var artifacts []string

	cmd := &cobra.Command{
		Use:   "emit <event>",
		Short: "Emit an event against a run",
		Long: `Emit an event against a run. The event is accepted only when the caller
role may emit it, a transition from the current state exists, its guard
is satisfied, and the run has not moved past --revision.

Without --revision the run's current revision is used, which forfeits
the optimistic-concurrency protection; automated callers should always
pass the revision they last read. Without --key a fresh idempotency key
is generated, making the call single-shot; retrying callers must supply
their own key to get replay semantics.

Examples:
  state-gate emit submit --role agent --artifact document.md
  state-gate emit approve --role reviewer --revision 2 --key approve-t42
  state-gate emit submit --payload phase=reviewing --payload-json '{"pages": 12}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return emitEvent(args[0], runFlag, role, revision, key, payloadPairs, payloadJSON, artifacts)
		},
	}

	cmd.Flags().StringVar(&runFlag, "run", "", "Run id (defaults to the run selected with 'use')")
	cmd.Flags().StringVar(&role, "role", "", "Caller role for permission checks")
	cmd.Flags().IntVar(&revision, "revision", 0, "Expected revision (defaults to the run's current revision)")
	cmd.Flags().StringVar(&key, "key", "", "Idempotency key (defaults to a generated one-shot key)")
	cmd.Flags().StringArrayVar(&payloadPairs, "payload", nil, "Payload entry as key=value, merged into the run context (repeatable)")
	cmd.Flags().StringVar(&payloadJSON, "payload-json", "", "Payload as a JSON object (merged over --payload)")
	cmd.Flags().StringArrayVar(&artifacts, "artifact", nil, "Relative artifact path to attach (repeatable)")
	return cmd
}

func emitEvent(event, runFlag, role string, revision int, key string, payloadPairs []string, payloadJSON string, artifacts []string) error {
	runID, err := resolveRun(runFlag)
	if err != nil {
		return err
	}

	payload, err := parseKeyValues(payloadPairs)
	if err != nil {
		return err
	}
	typed, err := parseJSONObject(payloadJSON, "payload-json")
	if err != nil {
		return err
	}
	for k, v := range typed {
		if payload == nil {
			payload = map[string]any{}
		}
		payload[k] = v
	}

	e := newEngine()

	if revision == 0 {
		state, err := e.GetState(runID)
		if err != nil {
			return renderEngineError(err)
		}
		revision = state.Revision
	}
	if key == "" {
		key, err = runid.NewEventID()
		if err != nil {
			return err
		}
	}

	result, err := e.EmitEvent(engine.EmitRequest{
		RunID:            runID,
		Event:            event,
		ExpectedRevision: revision,
		IdempotencyKey:   key,
		Role:             resolveRole(role),
		Payload:          payload,
		ArtifactPaths:    artifacts,
	})
	if err != nil {
		return renderEngineError(err)
	}

	if result.Replayed {
		fmt.Println(console.FormatInfoMessage(fmt.Sprintf(
			"Already accepted at revision %d (idempotent replay, originally %s in state %q)",
			result.NewRevision, result.Replay.Timestamp.Format("2006-01-02 15:04:05"), result.Replay.State)))
		return nil
	}

	fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("%s: %s -> %s (revision %d)",
		event, result.Transition.From, result.Transition.To, result.NewRevision)))
	if result.NewStatePrompt != "" {
		fmt.Println(console.FormatInfoMessage(result.NewStatePrompt))
	}
	return nil
}
