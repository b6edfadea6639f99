package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Record keys added by TracingHandler.
const (
	keyTraceID = "trace_id"
	keySpanID  = "span_id"
	keyService = "service"
	keyEnv     = "env"
	keyMode    = "mode"
	keyRunID   = "run_id"
	keyRepo    = "repo"
	keyTask    = "task"
)

type scopeKey struct{}

// scope is the repository and task a context is working on.
type scope struct {
	repo string
	task string
}

// WithRepo marks ctx as working on repo. Any task set by an outer scope is dropped.
func WithRepo(ctx context.Context, repo string) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope{repo: repo})
}

// WithTask marks ctx as working on task id of its repository.
func WithTask(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.task = id

	return context.WithValue(ctx, scopeKey{}, s)
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)

	return s
}

// TracingHandler is an [slog.Handler] that stamps each record with the
// active span and with the repository and task carried by the context.
// Service, mode and env are bound to the inner handler once, so they stay
// top level under WithGroup.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner. env is omitted when empty.
func NewTracingHandler(inner slog.Handler, service, env string, appMode AppMode) *TracingHandler {
	bound := []slog.Attr{
		slog.String(keyService, service),
		slog.String(keyMode, string(appMode)),
	}

	if env != "" {
		bound = append(bound, slog.String(keyEnv, env))
	}

	return &TracingHandler{inner: inner.WithAttrs(bound)}
}

// Enabled implements [slog.Handler].
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle implements [slog.Handler].
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(keyTraceID, sc.TraceID().String()),
			slog.String(keySpanID, sc.SpanID().String()),
		)
	}

	s := scopeFrom(ctx)
	if s.repo != "" {
		record.AddAttrs(slog.String(keyRepo, s.repo))
	}

	if s.task != "" {
		record.AddAttrs(slog.String(keyTask, s.task))
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("write log record: %w", err)
	}

	return nil
}

// WithAttrs implements [slog.Handler].
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// WithRun tags every record of logger with the run identifier.
func WithRun(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String(keyRunID, runID))
}
