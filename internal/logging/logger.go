// Package logging provides the resolver's logger with secret redaction.
//
// Two back ends are supported: a console writer for the kvresolve CLI
// (colored status glyphs on stderr) and any *slog.Logger supplied by a
// library caller. Values wrapped in Secret are redacted by both.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger provides leveled printf-style logging with redaction support.
type Logger struct {
	debug   bool
	noColor bool

	mu  sync.Mutex
	out io.Writer

	// sl, when set, receives every message instead of out.
	sl *slog.Logger
}

// New creates a console logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return NewWithWriter(os.Stderr, debug, noColor)
}

// NewWithWriter creates a console logger writing to w.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     w,
	}
}

// FromSlog wraps a structured logger. Level filtering is left to the
// handler of l.
func FromSlog(l *slog.Logger) *Logger {
	return &Logger{debug: true, sl: l}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, false, true)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit(slog.LevelInfo, "\033[32m✓\033[0m ", "✓ ", format, args)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit(slog.LevelWarn, "\033[33m⚠\033[0m ", "⚠ ", format, args)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit(slog.LevelError, "\033[31m✗\033[0m ", "✗ ", format, args)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit(slog.LevelDebug, "\033[36m[DEBUG]\033[0m ", "[DEBUG] ", format, args)
}

// DebugEnabled reports whether Debug messages are emitted.
func (l *Logger) DebugEnabled() bool {
	if l.sl != nil {
		return l.sl.Enabled(context.Background(), slog.LevelDebug)
	}
	return l.debug
}

func (l *Logger) emit(level slog.Level, colored, plain, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.sl != nil {
		l.sl.Log(context.Background(), level, msg)
		return
	}

	prefix := colored
	if l.noColor {
		prefix = plain
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s%s\n", prefix, msg)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// LogValue implements slog.LogValuer so structured attributes are redacted too.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue("[REDACTED]")
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
