// Package logging builds the service's slog logger and carries request-scoped
// loggers through contexts.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the handler, level and destination.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	Output string // stdout or stderr
}

// New returns a logger with a default "service" attribute.
func New(cfg Config, service string) *slog.Logger {
	return slog.New(NewHandler(cfg, service))
}

// NewHandler is New without the slog.Logger wrapper, for composing handlers.
func NewHandler(cfg Config, service string) slog.Handler {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return newHandler(out, cfg, service)
}

func newHandler(out io.Writer, cfg Config, service string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		h = slog.NewTextHandler(out, opts)
	default:
		h = slog.NewJSONHandler(out, opts)
	}
	if service != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", service)})
	}
	return h
}

// ParseLevel maps a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
