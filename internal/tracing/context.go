package tracing

import (
	"context"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RunIDKey is the context key for a maintenance run ID
	RunIDKey ContextKey = "run_id"
	// JobKey is the context key for the maintenance job name
	JobKey ContextKey = "job"
	// CommandKey is the context key for the CLI command being served
	CommandKey ContextKey = "command"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID string
	RunID   string
	Job     string
	Command string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRunID generates a short run ID for maintenance runs
func NewRunID() string {
	id, err := gonanoid.New(12)
	if err != nil {
		return uuid.New().String()
	}
	return id
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithRunID adds a run ID to the context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithJob adds a maintenance job name to the context
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, JobKey, job)
}

// WithCommand adds a CLI command name to the context
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, CommandKey, command)
}

func value(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string { return value(ctx, TraceIDKey) }

// GetRunID retrieves the run ID from the context
func GetRunID(ctx context.Context) string { return value(ctx, RunIDKey) }

// GetJob retrieves the maintenance job name from the context
func GetJob(ctx context.Context) string { return value(ctx, JobKey) }

// GetCommand retrieves the CLI command name from the context
func GetCommand(ctx context.Context) string { return value(ctx, CommandKey) }

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		RunID:   GetRunID(ctx),
		Job:     GetJob(ctx),
		Command: GetCommand(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RunID != "" {
		ctx = WithRunID(ctx, tc.RunID)
	}
	if tc.Job != "" {
		ctx = WithJob(ctx, tc.Job)
	}
	if tc.Command != "" {
		ctx = WithCommand(ctx, tc.Command)
	}
	return ctx
}

// NewCommandContext creates a context for one CLI command with a new trace ID
func NewCommandContext(ctx context.Context, command string) context.Context {
	return WithCommand(WithTraceID(ctx, NewTraceID()), command)
}

// NewJobRunContext creates a context for one maintenance run. The trace ID
// is kept when present; the run ID is always new.
func NewJobRunContext(ctx context.Context, job string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithJob(WithRunID(ctx, NewRunID()), job)
}
