// Package logger provides centralized slog.Logger construction with
// configurable level and output format (text or JSON).
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted replaces the value of any attribute whose key looks secret.
const Redacted = "[REDACTED]"

// secretKeyParts mark attribute keys whose values never reach the output.
var secretKeyParts = []string{"api_key", "apikey", "token", "secret", "password", "authorization"}

// Options tune handler construction beyond level and format.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	// Service is attached to every record as service=<name> when set.
	Service string
}

// New creates a *slog.Logger configured with the given level and format.
// Level: "debug", "info", "warn", "error" (default: "info").
// Format: "json" or "text" (default: "text").
// Output goes to stderr.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a *slog.Logger writing to w.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	return NewWithOptions(w, Options{Level: level, Format: format})
}

// NewWithOptions creates a *slog.Logger writing to w using opts. Attributes
// with secret-looking keys are redacted in both formats.
func NewWithOptions(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		AddSource:   opts.AddSource,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}

	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With("service", opts.Service)
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel converts a level string to slog.Level.
// Recognized values: "debug", "warn", "error". Everything else returns LevelInfo.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	key := strings.ToLower(a.Key)
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return slog.String(a.Key, Redacted)
		}
	}
	return a
}
