// Package logger provides namespaced debug loggers enabled via the DEBUG
// environment variable, in the style of the npm debug package.
//
// Each package creates its loggers at init time:
//
//	var engineLog = logger.New("engine:emit")
//
// Output goes to stderr and is silent unless DEBUG matches the logger's
// scope. Patterns are comma-separated and support a trailing wildcard:
//
//	DEBUG=engine:emit        # exactly this scope
//	DEBUG=engine:*           # every engine scope
//	DEBUG=*                  # everything
package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is a scoped debug logger. The zero value is unusable; create
// instances with New.
type Logger struct {
	scope   string
	enabled bool
}

var (
	patternsOnce sync.Once
	patterns     []string
)

func debugPatterns() []string {
	patternsOnce.Do(func() {
		raw := os.Getenv("DEBUG")
		if raw == "" {
			return
		}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				patterns = append(patterns, p)
			}
		}
	})
	return patterns
}

func scopeEnabled(scope string) bool {
	return matchScope(debugPatterns(), scope)
}

func matchScope(patterns []string, scope string) bool {
	for _, p := range patterns {
		if p == "*" || p == scope {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, "*"); ok && strings.HasPrefix(scope, prefix) {
			return true
		}
	}
	return false
}

// New creates a logger for the given scope. Scope names use a
// "package:component" convention.
func New(scope string) *Logger {
	return &Logger{scope: scope, enabled: scopeEnabled(scope)}
}

// Enabled reports whether this logger's scope matches DEBUG.
func (l *Logger) Enabled() bool { return l.enabled }

// Print logs a message when the scope is enabled.
func (l *Logger) Print(msg string) {
	if !l.enabled {
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s %s\n", time.Now().Format(time.RFC3339), l.scope, msg)
}

// Printf logs a formatted message when the scope is enabled.
func (l *Logger) Printf(format string, args ...any) {
	if !l.enabled {
		return
	}
	l.Print(fmt.Sprintf(format, args...))
}

// ExtractErrorMessage returns err's message, or "" for a nil error. It
// exists so call sites can log optional errors without nil checks.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
