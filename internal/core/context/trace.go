// Package context carries request-scoped values (trace ids, run trigger) used by logging.
package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext creates a new TraceContext with generated IDs.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   uuid.New().String(),
		RequestID: uuid.New().String(),
	}
}

// Trigger identifies what started a unit of work: "scheduler", "admin", "checkout".
type Trigger string

const (
	TriggerScheduler Trigger = "scheduler"
	TriggerAdmin     Trigger = "admin"
	TriggerCheckout  Trigger = "checkout"
)

type triggerKey struct{}

// WithTrigger tags ctx with the run trigger.
func WithTrigger(ctx context.Context, t Trigger) context.Context {
	return context.WithValue(ctx, triggerKey{}, t)
}

// GetTrigger returns the trigger or "" when untagged.
func GetTrigger(ctx context.Context) Trigger {
	if v, ok := ctx.Value(triggerKey{}).(Trigger); ok {
		return v
	}
	return ""
}
