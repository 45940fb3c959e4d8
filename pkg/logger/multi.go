package logger

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler delivers each record to every underlying handler, letting a
// single logger drive pretty terminal output and a JSON log file at once.
type teeHandler struct {
	handlers []slog.Handler
}

// Multi combines several loggers into one that writes to all of them.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	handlers := make([]slog.Handler, len(loggers))
	for i, l := range loggers {
		handlers[i] = l.Handler()
	}
	return slog.New(&teeHandler{handlers: handlers})
}

// Enabled reports whether any underlying handler wants records at this level.
func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers the record to every handler that wants it. A failing
// sink does not stop delivery to the others; errors are joined.
func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	children := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		children[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: children}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	children := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		children[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: children}
}
