package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"membership-sync/internal/config"
)

// Logger is the leveled sink every reconciliation decision is reported to.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warning(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Success(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// New builds the process logger from the Log config block.
func New(cfg config.Log, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
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

type slogLogger struct {
	log *slog.Logger
}

// FromSlog adapts a slog.Logger to Logger. Success is written at info level
// with outcome=success so audit queries can filter on it.
func FromSlog(l *slog.Logger) Logger {
	return &slogLogger{log: l}
}

func (l *slogLogger) Info(msg string, fields map[string]interface{}) {
	l.write(slog.LevelInfo, msg, fields)
}

func (l *slogLogger) Warning(msg string, fields map[string]interface{}) {
	l.write(slog.LevelWarn, msg, fields)
}

func (l *slogLogger) Error(msg string, fields map[string]interface{}) {
	l.write(slog.LevelError, msg, fields)
}

func (l *slogLogger) Success(msg string, fields map[string]interface{}) {
	l.write(slog.LevelInfo, msg, fields, slog.String("outcome", "success"))
}

func (l *slogLogger) Debug(msg string, fields map[string]interface{}) {
	l.write(slog.LevelDebug, msg, fields)
}

func (l *slogLogger) write(level slog.Level, msg string, fields map[string]interface{}, extra ...slog.Attr) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+len(extra))
	attrs = append(attrs, extra...)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	l.log.LogAttrs(ctx, level, msg, attrs...)
}

// Nop discards everything.
func Nop() Logger {
	return FromSlog(slog.New(slog.NewTextHandler(io.Discard, nil)))
}
