// Package tracing bridges the agent loop's span bookkeeping into
// OpenTelemetry. The agent loop decides up front what trace a run belongs
// to and what span should parent its children, stashes both in the request
// context, and hands finished spans to a Collector once it knows their
// full start/end.
package tracing

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	collectorKey ctxKey = iota
	traceIDKey
	parentSpanIDKey
	announceParentSpanIDKey
)

// WithCollector attaches the active Collector to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey, c)
}

// CollectorFromContext returns the Collector stashed by WithCollector, or
// nil if tracing isn't active for this request.
func CollectorFromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey).(*Collector)
	return c
}

// WithTraceID attaches the trace this run belongs to.
func WithTraceID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceIDFromContext returns uuid.Nil if no trace is active.
func TraceIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(traceIDKey).(uuid.UUID)
	return id
}

// WithParentSpanID sets the span that spans created from ctx should nest
// under. SubagentManager.executeTask overrides this per subagent run so its
// LLM/tool spans nest under the subagent's own root span rather than the
// parent's.
func WithParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, parentSpanIDKey, id)
}

// ParentSpanIDFromContext returns uuid.Nil if no parent span is set.
func ParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(parentSpanIDKey).(uuid.UUID)
	return id
}

// WithAnnounceParentSpanID marks ctx as belonging to a subagent-announce
// run, nesting the announce's agent span under the original request's root
// span instead of starting a fresh top-level trace.
func WithAnnounceParentSpanID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, announceParentSpanIDKey, id)
}

// AnnounceParentSpanIDFromContext returns uuid.Nil outside an announce run.
func AnnounceParentSpanIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(announceParentSpanIDKey).(uuid.UUID)
	return id
}
