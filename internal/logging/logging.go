// Package logging configures the process-wide slog logger once at startup.
//
// The level and output format come from the environment so that the CLI and
// the HTTP server share the same switches:
//
//	SYNTHSTREAM_LOG_LEVEL   debug | info (default) | warn | error
//	SYNTHSTREAM_LOG_FORMAT  text (default) | json
//
// Library packages never call Setup; they log through slog.Default() and tag
// their records with a "component" attribute.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Environment variables read by Setup.
const (
	EnvLevel  = "SYNTHSTREAM_LOG_LEVEL"
	EnvFormat = "SYNTHSTREAM_LOG_FORMAT"
)

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds a logger writing to w using the given format ("json" or text).
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup installs the default logger from the environment. verbose forces the
// debug level regardless of SYNTHSTREAM_LOG_LEVEL.
func Setup(verbose bool) *slog.Logger {
	level := ParseLevel(os.Getenv(EnvLevel))
	if verbose {
		level = slog.LevelDebug
	}
	l := New(os.Stderr, level, os.Getenv(EnvFormat))
	slog.SetDefault(l)
	return l
}

// For returns the default logger tagged with a component name.
func For(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
