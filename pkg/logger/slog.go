package logger

import (
	"context"
	"log/slog"
)

// debugHandler adapts a Logger into a slog.Handler so libraries that speak
// slog (the MCP SDK in particular) share the DEBUG gating.
type debugHandler struct {
	logger *Logger
	attrs  []slog.Attr
}

// NewSlogLoggerWithHandler returns a *slog.Logger whose records are routed
// through the given debug logger.
func NewSlogLoggerWithHandler(l *Logger) *slog.Logger {
	return slog.New(&debugHandler{logger: l})
}

func (h *debugHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return h.logger.Enabled()
}

func (h *debugHandler) Handle(_ context.Context, record slog.Record) error {
	msg := record.Message
	appendAttr := func(a slog.Attr) bool {
		msg += " " + a.Key + "=" + a.Value.String()
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(appendAttr)
	h.logger.Printf("%s: %s", record.Level, msg)
	return nil
}

func (h *debugHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &debugHandler{logger: h.logger, attrs: merged}
}

func (h *debugHandler) WithGroup(string) slog.Handler { return h }
