package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToTurn derives the context for one model turn. It keeps the trace
// and conversation ids and assigns a fresh turn id.
func PropagateToTurn(ctx context.Context, submissionID string) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = NewTraceID()
	}

	newCtx := WithTraceID(ctx, traceID)
	newCtx = WithSubmissionID(newCtx, submissionID)
	return WithTurnID(newCtx, NewTurnID())
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)
	if tc.TraceID == "" && tc.ConversationID == "" && tc.SubmissionID == "" && tc.TurnID == "" && tc.ConnectionID == "" {
		return logger
	}

	lc := logger.With()
	if tc.TraceID != "" {
		lc = lc.Str("trace_id", tc.TraceID)
	}
	if tc.ConversationID != "" {
		lc = lc.Str("conversation_id", tc.ConversationID)
	}
	if tc.SubmissionID != "" {
		lc = lc.Str("submission_id", tc.SubmissionID)
	}
	if tc.TurnID != "" {
		lc = lc.Str("turn_id", tc.TurnID)
	}
	if tc.ConnectionID != "" {
		lc = lc.Str("connection_id", tc.ConnectionID)
	}
	return lc.Logger()
}

// LoggerFromContext creates a logger with tracing context from the given context
func LoggerFromContext(ctx context.Context, baseLogger zerolog.Logger) zerolog.Logger {
	return PropagateToLogger(ctx, baseLogger)
}

// MergeContext merges tracing information from source context into target
// context without overwriting what target already carries.
func MergeContext(target, source context.Context) context.Context {
	tc := FromContext(source)

	if tc.TraceID != "" && GetTraceID(target) == "" {
		target = WithTraceID(target, tc.TraceID)
	}
	if tc.ConversationID != "" && GetConversationID(target) == "" {
		target = WithConversationID(target, tc.ConversationID)
	}
	if tc.SubmissionID != "" && GetSubmissionID(target) == "" {
		target = WithSubmissionID(target, tc.SubmissionID)
	}
	if tc.TurnID != "" && GetTurnID(target) == "" {
		target = WithTurnID(target, tc.TurnID)
	}
	if tc.ConnectionID != "" && GetConnectionID(target) == "" {
		target = WithConnectionID(target, tc.ConnectionID)
	}

	return target
}

// CloneContext creates a new, uncancelled context with the same tracing
// information.
func CloneContext(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
