package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/CAPHTECH/state-gate-sub000/pkg/console"
	"github.com/CAPHTECH/state-gate-sub000/pkg/logger"
)

var mcpHTTPLog = logger.New("mcp:http")

const mcpServerHTTPTimeout = 10 * time.Second

// sanitizeForLog removes newline and carriage return characters from user
// input so request paths cannot forge log entries.
func sanitizeForLog(input string) string {
	sanitized := strings.ReplaceAll(input, "\n", "")
	return strings.ReplaceAll(sanitized, "\r", "")
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func loggingHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		path := sanitizeForLog(r.URL.Path)

		handler.ServeHTTP(wrapped, r)

		mcpHTTPLog.Printf("%s %s %s status=%d duration=%v",
			r.RemoteAddr, r.Method, path, wrapped.statusCode, time.Since(start))
	})
}

// runHTTPServer runs the MCP server over streamable HTTP.
func runHTTPServer(server *mcp.Server, port int) error {
	handler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{
		SessionTimeout: 2 * time.Hour, // Close idle sessions after 2 hours
		Logger:         logger.NewSlogLoggerWithHandler(mcpHTTPLog),
	})

	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           loggingHandler(handler),
		ReadHeaderTimeout: mcpServerHTTPTimeout,
	}

	fmt.Fprintln(os.Stderr, console.FormatInfoMessage(fmt.Sprintf("Serving MCP on http://localhost%s", addr)))
	mcpHTTPLog.Printf("HTTP server listening on %s", addr)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}
