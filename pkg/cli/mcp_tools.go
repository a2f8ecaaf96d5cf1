package cli

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var mcpToolsLog = logger.New("mcp:tools")

// registerRunTools registers the tools that create runs and move them.
func registerRunTools(server *mcp.Server, e *engine.Engine, defaultRole string) {
	type createRunArgs struct {
		ProcessID string         `json:"process_id" jsonschema:"Id of the process definition to instantiate"`
		Context   map[string]any `json:"context,omitempty" jsonschema:"Initial context entries overlaying the process initial_context"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_run",
		Description: "Start a new run of a process. Returns the run id, initial state, revision 1, and the effective initial context.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args createRunArgs) (*mcp.CallToolResult, any, error) {
		mcpToolsLog.Printf("create_run: process=%s", args.ProcessID)

		result, err := e.CreateRun(args.ProcessID, args.Context)
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})

	type emitEventArgs struct {
		RunID            string         `json:"run_id" jsonschema:"Run to emit against"`
		Event            string         `json:"event" jsonschema:"Event name as declared by the process"`
		ExpectedRevision int            `json:"expected_revision" jsonschema:"Revision the caller last read; the emit fails with REVISION_CONFLICT if the run moved"`
		IdempotencyKey   string         `json:"idempotency_key" jsonschema:"Caller-chosen key; retries with the same key replay the original acceptance"`
		Role             string         `json:"role,omitempty" jsonschema:"Caller role for permission checks (defaults to the server's role)"`
		Payload          map[string]any `json:"payload,omitempty" jsonschema:"Entries merged into the run context after the transition commits"`
		ArtifactPaths    []string       `json:"artifact_paths,omitempty" jsonschema:"Relative artifact paths to attach to the run"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "emit_event",
		Description: `Attempt a state transition. The event is checked against the caller
role, the transitions from the current state, their guards, and the
expected revision before being committed to the append-only run log.
Always read get_state first and pass its revision.`,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args emitEventArgs) (*mcp.CallToolResult, any, error) {
		role := args.Role
		if role == "" {
			role = defaultRole
		}
		mcpToolsLog.Printf("emit_event: run=%s, event=%s, revision=%d, role=%s",
			args.RunID, args.Event, args.ExpectedRevision, role)

		result, err := e.EmitEvent(engine.EmitRequest{
			RunID:            args.RunID,
			Event:            args.Event,
			ExpectedRevision: args.ExpectedRevision,
			IdempotencyKey:   args.IdempotencyKey,
			Role:             role,
			Payload:          args.Payload,
			ArtifactPaths:    args.ArtifactPaths,
		})
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})
}

// registerQueryTools registers the read-only projections.
func registerQueryTools(server *mcp.Server, e *engine.Engine) {
	type runArgs struct {
		RunID string `json:"run_id" jsonschema:"Run to inspect"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_state",
		Description: "Current position of a run: state, prompt, revision, context, unsatisfied guards, required artifacts, and the events ready to fire.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args runArgs) (*mcp.CallToolResult, any, error) {
		result, err := e.GetState(args.RunID)
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})

	type listEventsArgs struct {
		RunID          string `json:"run_id" jsonschema:"Run to inspect"`
		IncludeBlocked bool   `json:"include_blocked,omitempty" jsonschema:"Also list events whose guards are unsatisfied, with reasons"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_events",
		Description: "Events with a transition from the run's current state, each marked allowed or blocked.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listEventsArgs) (*mcp.CallToolResult, any, error) {
		result, err := e.ListEvents(args.RunID, args.IncludeBlocked)
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})

	type listRunsArgs struct{}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_runs",
		Description: "All runs with their process, current state, revision, and timestamps, newest first.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args listRunsArgs) (*mcp.CallToolResult, any, error) {
		result, err := e.ListRuns()
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_event_history",
		Description: "Full append-only log of a run in order: the init row, then one row per accepted event.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args runArgs) (*mcp.CallToolResult, any, error) {
		result, err := e.GetEventHistory(args.RunID)
		if err != nil {
			return nil, nil, engineErrorToJSONRPC(err)
		}
		res, err := textResult(result)
		if err != nil {
			return nil, nil, &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: err.Error()}
		}
		return res, result, nil
	})
}
