// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys read by the context-aware handler.
const (
	RequestIDKey LogContextKey = "request_id"
	ModeratorKey LogContextKey = "moderator"
	TraceIDKey   LogContextKey = "trace_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok && rid != "" {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if mod, ok := ctx.Value(ModeratorKey).(string); ok && mod != "" {
		r.AddAttrs(slog.String("moderator", mod))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok && tid != "" {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

// NewLogger builds the application logger: JSON in production, text
// elsewhere, wrapped so request-scoped values are attached automatically.
func NewLogger(env string, w io.Writer, level slog.Level) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(env) {
	case "production", "prod":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// ParseLevel maps a textual level to slog; unknown values mean info.
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

// WithModerator returns ctx carrying the acting moderator for log records.
func WithModerator(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ModeratorKey, name)
}

// ModeratorFrom returns the moderator stored by WithModerator, if any.
func ModeratorFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ModeratorKey).(string); ok {
		return v
	}
	return ""
}

// LogAsyncOperationStart logs the start of an asynchronous operation.
func LogAsyncOperationStart(ctx context.Context, logger *slog.Logger, operation string, attrs ...any) {
	attrs = append([]any{slog.String("operation", operation), slog.String("type", "async_start")}, attrs...)
	logger.InfoContext(ctx, "async operation started", attrs...)
}

// LogAsyncOperationEnd logs the completion of an asynchronous operation.
func LogAsyncOperationEnd(ctx context.Context, logger *slog.Logger, operation string, attrs ...any) {
	attrs = append([]any{slog.String("operation", operation), slog.String("type", "async_end")}, attrs...)
	logger.InfoContext(ctx, "async operation completed", attrs...)
}

// LogAsyncOperationError logs an error in an asynchronous operation.
func LogAsyncOperationError(ctx context.Context, logger *slog.Logger, operation string, err error, attrs ...any) {
	attrs = append([]any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}, attrs...)
	logger.ErrorContext(ctx, "async operation failed", attrs...)
}
