package logging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Slog returns a *slog.Logger writing through l, so code that takes a
// structured logger shares the console output and debug switch.
func (l *Logger) Slog() *slog.Logger {
	if l.sl != nil {
		return l.sl
	}
	return slog.New(&consoleHandler{l: l})
}

type consoleHandler struct {
	l      *Logger
	attrs  []slog.Attr
	groups []string
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level > slog.LevelDebug || h.l.debug
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.qualify(a))
		return true
	})

	msg := b.String()
	switch {
	case r.Level >= slog.LevelError:
		h.l.Error("%s", msg)
	case r.Level >= slog.LevelWarn:
		h.l.Warn("%s", msg)
	case r.Level >= slog.LevelInfo:
		h.l.Info("%s", msg)
	default:
		h.l.Debug("%s", msg)
	}
	return nil
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		merged = append(merged, h.qualify(a))
	}
	return &consoleHandler{l: h.l, attrs: merged, groups: h.groups}
}

// qualify prefixes the attribute key with the open groups.
func (h *consoleHandler) qualify(a slog.Attr) slog.Attr {
	if len(h.groups) > 0 {
		a.Key = strings.Join(h.groups, ".") + "." + a.Key
	}
	return a
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value)
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &consoleHandler{
		l:      h.l,
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}
