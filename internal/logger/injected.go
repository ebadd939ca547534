package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps an slog.Logger built from Config. Components that need to
// log (the connection pool, the file handle cache, the façade) take a
// *Logger through their constructor rather than reaching for package-level
// functions; a nil *Logger is always safe to call and discards everything,
// so tests and callers that don't care about logging can omit it.
type Logger struct {
	slog *slog.Logger
}

// New builds a Logger from Config. Output is "stdout" (the default),
// "stderr", or a file path opened for appending; Format selects "text"
// (ColorTextHandler, the teacher's own handler) or "json" (slog's stock
// JSON handler).
func New(cfg Config) (*Logger, error) {
	w, useColor, err := resolveOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	level := new(slog.LevelVar)
	level.Set(toSlogLevel(parseLevel(cfg.Level)))
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = NewColorTextHandler(w, opts, useColor)
	}

	return &Logger{slog: slog.New(handler)}, nil
}

// Discard is a Logger that drops every record; useful as a safe default
// when a caller has no Config to build a real one from.
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func resolveOutput(output string) (io.Writer, bool, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, false, err
		}
		return f, false, nil
	}
}

func parseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) base() *slog.Logger {
	if l == nil || l.slog == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.slog
}

func (l *Logger) Debug(msg string, args ...any) { l.base().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base().Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base().Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base().Error(msg, args...) }

// Keys for the LogContext fields appendContextFields injects.
const (
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyProcedure = "procedure"
	KeyShare     = "share"
	KeyClientIP  = "client_ip"
)

// appendContextFields prepends the LogContext fields carried on ctx (if
// any) ahead of the caller's own args. Zero-valued fields are skipped so a
// LogContext built for one RPC doesn't pad every line with empty strings.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := make([]any, 0, 16+len(args))
	if lc.TraceID != "" {
		fields = append(fields, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		fields = append(fields, KeySpanID, lc.SpanID)
	}
	if lc.Procedure != "" {
		fields = append(fields, KeyProcedure, lc.Procedure)
	}
	if lc.Share != "" {
		fields = append(fields, KeyShare, lc.Share)
	}
	if lc.ClientIP != "" {
		fields = append(fields, KeyClientIP, lc.ClientIP)
	}
	if lc.UID != 0 {
		fields = append(fields, KeyUID, lc.UID)
	}
	if lc.GID != 0 {
		fields = append(fields, KeyGID, lc.GID)
	}
	if !lc.StartTime.IsZero() {
		fields = append(fields, KeyDurationMs, Duration(lc.StartTime))
	}

	return append(fields, args...)
}

// DebugCtx/InfoCtx/WarnCtx/ErrorCtx log like Debug/Info/Warn/Error,
// injecting any LogContext fields carried on ctx.
func (l *Logger) DebugCtx(ctx context.Context, msg string, args ...any) {
	l.base().Debug(msg, appendContextFields(ctx, args)...)
}
func (l *Logger) InfoCtx(ctx context.Context, msg string, args ...any) {
	l.base().Info(msg, appendContextFields(ctx, args)...)
}
func (l *Logger) WarnCtx(ctx context.Context, msg string, args ...any) {
	l.base().Warn(msg, appendContextFields(ctx, args)...)
}
func (l *Logger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	l.base().Error(msg, appendContextFields(ctx, args)...)
}

// With returns a Logger with additional attributes pre-bound, e.g. a pool
// key or export path every subsequent line should carry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.base().With(args...)}
}
