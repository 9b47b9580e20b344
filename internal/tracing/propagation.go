package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	if tc.TraceID != "" {
		logger = logger.With().Str("trace_id", tc.TraceID).Logger()
	}
	if tc.RunID != "" {
		logger = logger.With().Str("run_id", tc.RunID).Logger()
	}
	if tc.Job != "" {
		logger = logger.With().Str("job", tc.Job).Logger()
	}
	if tc.Command != "" {
		logger = logger.With().Str("command", tc.Command).Logger()
	}

	return logger
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext copies tracing values from source that target lacks
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.RunID != "" && GetRunID(target) == "" {
		target = WithRunID(target, tc.RunID)
	}
	if tc.Job != "" && GetJob(target) == "" {
		target = WithJob(target, tc.Job)
	}
	if tc.Command != "" && GetCommand(target) == "" {
		target = WithCommand(target, tc.Command)
	}

	return target
}

// Detach returns a background context carrying ctx's tracing values, for
// work that must outlive ctx's cancellation.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
