package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	stageIDKey
	learnerIDKey
)

// WithSessionID returns a context with the game session ID set.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithStageID returns a context with the stage ID set.
func WithStageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, stageIDKey, id)
}

// WithLearnerID returns a context with the learner ID set.
func WithLearnerID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, learnerIDKey, id)
}

// SessionID extracts the session ID from the context, or "" if absent.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// StageID extracts the stage ID from the context, or "" if absent.
func StageID(ctx context.Context) string {
	v, _ := ctx.Value(stageIDKey).(string)
	return v
}

// LearnerID extracts the learner ID from the context, or "" if absent.
func LearnerID(ctx context.Context) string {
	v, _ := ctx.Value(learnerIDKey).(string)
	return v
}

// WithIDs sets all three correlation IDs on the context at once.
func WithIDs(ctx context.Context, sessionID, stageID, learnerID string) context.Context {
	ctx = WithSessionID(ctx, sessionID)
	ctx = WithStageID(ctx, stageID)
	ctx = WithLearnerID(ctx, learnerID)
	return ctx
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if v := SessionID(ctx); v != "" {
		logger = logger.With(slog.String("session_id", v))
	}
	if v := StageID(ctx); v != "" {
		logger = logger.With(slog.String("stage_id", v))
	}
	if v := LearnerID(ctx); v != "" {
		logger = logger.With(slog.String("learner_id", v))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := SessionID(ctx); v != "" {
		r.AddAttrs(slog.String("session_id", v))
	}
	if v := StageID(ctx); v != "" {
		r.AddAttrs(slog.String("stage_id", v))
	}
	if v := LearnerID(ctx); v != "" {
		r.AddAttrs(slog.String("learner_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps debug|info|warn|error to a slog level. Unknown values
// fall back to info.
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

// New builds the root logger: a text handler on w at the given level,
// wrapped by the correlation handler.
func New(w io.Writer, level string) *slog.Logger {
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(NewCorrelationHandler(inner))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
