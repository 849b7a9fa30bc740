// Package logging wraps zerolog so every component logs through the same
// structured logger, configured once from the CLI.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger to provide a consistent interface.
type Logger struct {
	zerolog.Logger
}

// ParseLevel maps a config level name to a zerolog level. Unknown names fall
// back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a console logger on stderr with the given level.
func New(level string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return &Logger{Logger: zerolog.New(output).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

// NewJSON creates a logger that writes JSON lines on stderr.
func NewJSON(level string) *Logger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput creates a JSON logger writing to w.
func NewWithOutput(level string, w io.Writer) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()}
}

// NewFromConfig picks the console or JSON writer by format name.
func NewFromConfig(level, format string) *Logger {
	if strings.EqualFold(format, "json") {
		return NewJSON(level)
	}
	return New(level)
}

// NewSilent creates a logger that discards all output.
func NewSilent() *Logger {
	return &Logger{Logger: zerolog.New(io.Discard)}
}

// With returns a child logger carrying the component name.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return NewSilent()
	}
	return &Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}

// OrSilent returns l, or a discarding logger when l is nil.
func OrSilent(l *Logger) *Logger {
	if l == nil {
		return NewSilent()
	}
	return l
}
