package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/engine"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var mcpLog = logger.New("mcp:server")

// NewMCPServerCommand creates the mcp-server command.
func NewMCPServerCommand() *cobra.Command {
	var port int
	var role string

	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Run an MCP server exposing the state gate as tools",
		Long: `Run an MCP (Model Context Protocol) server exposing the state gate to
agent frameworks.

The server provides the following tools:
  create_run         - Start a run of a process
  get_state          - Current state, revision, context, and fireable events
  list_events        - Events that can fire now (optionally with blocked ones)
  emit_event         - Attempt a transition (revision-checked, idempotent)
  list_runs          - All runs with their current position
  get_event_history  - Full append-only log of one run

The caller role for permission checks comes from the STATE_GATE_ROLE
environment variable, overridable per emit_event call via its "role"
argument.

By default the server uses stdio transport. Use the --port flag to serve
streamable HTTP instead.

Examples:
  state-gate mcp-server                          # stdio transport
  state-gate mcp-server --port 8080              # HTTP on port 8080
  STATE_GATE_ROLE=agent state-gate mcp-server    # fix the caller role
  DEBUG=mcp:* state-gate mcp-server              # verbose logging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPServer(port, role)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to serve HTTP on (uses stdio if not specified)")
	cmd.Flags().StringVar(&role, "role", "", "Default caller role (overrides STATE_GATE_ROLE)")
	return cmd
}

func runMCPServer(port int, role string) error {
	if role == "" {
		role = os.Getenv("STATE_GATE_ROLE")
	}
	if role != "" {
		mcpLog.Printf("default caller role: %s", role)
		fmt.Fprintln(os.Stderr, console.FormatInfoMessage("Caller role: "+role))
	} else {
		mcpLog.Print("no default caller role; emits without a role argument run unprivileged")
	}

	if cwd, err := os.Getwd(); err == nil {
		mcpLog.Printf("current working directory: %s", cwd)
	}

	e := newEngine()
	if err := e.WatchDefinitions(); err != nil {
		// Stale caches are tolerable; serving without invalidation beats
		// refusing to start.
		mcpLog.Printf("definition watcher unavailable: %v", err)
	} else {
		defer func() { _ = e.Close() }()
	}

	server := createMCPServer(e, role)

	if port > 0 {
		return runHTTPServer(server, port)
	}

	mcpLog.Print("MCP server ready on stdio")
	return server.Run(context.Background(), &mcp.StdioTransport{})
}

// createMCPServer creates and configures the MCP server with all tools.
func createMCPServer(e *engine.Engine, defaultRole string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "state-gate",
		Version: GetVersion(),
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{
				ListChanged: false, // Tools are static, no notifications needed
			},
		},
		Logger: logger.NewSlogLoggerWithHandler(mcpLog),
	})

	registerRunTools(server, e, defaultRole)
	registerQueryTools(server, e)
	return server
}

// mcpErrorData marshals data to JSON for use in jsonrpc.Error.Data field.
// Returns nil if marshaling fails to avoid errors in error handling.
func mcpErrorData(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		mcpLog.Printf("failed to marshal error data: %v", err)
		return nil
	}
	return data
}

// engineErrorToJSONRPC maps the engine taxonomy onto JSON-RPC error codes,
// carrying the taxonomy code and details in the data payload.
func engineErrorToJSONRPC(err error) *jsonrpc.Error {
	engErr := engine.AsEngineError(err)

	var code int64
	switch engErr.Code {
	case engine.CodeInvalidInput, engine.CodeInvalidPayload, engine.CodeInvalidEvent:
		code = jsonrpc.CodeInvalidParams
	case engine.CodeInternal:
		code = jsonrpc.CodeInternalError
	default:
		// Domain refusals (not found, forbidden, guard, conflict) are
		// well-formed requests the gate declined.
		code = jsonrpc.CodeInvalidRequest
	}

	return &jsonrpc.Error{
		Code:    code,
		Message: engErr.Message,
		Data: mcpErrorData(map[string]any{
			"code":    engErr.Code,
			"details": engErr.Details,
		}),
	}
}

// textResult wraps a JSON-marshaled value as a tool result.
func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}
