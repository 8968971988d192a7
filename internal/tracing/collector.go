package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/relaygate/relaygate/internal/store"
)

// Collector turns store.SpanData records into OpenTelemetry spans and hands
// them to whatever exporter the TracerProvider was built with (OTLP/grpc,
// OTLP/http, or none at all in verbose-only local mode).
//
// Spans here are retroactive: the agent loop already knows a span's start
// and end time by the time EmitSpan is called, so each span is opened and
// closed in the same call rather than living across a Start/End pair. Our
// own trace_id/span_id/parent_span_id bookkeeping (store.SpanData) is kept
// as span attributes rather than folded into the OTel SpanContext tree,
// since spans can be emitted out of order (the agent root span closes last,
// after all of its children) and OTel's SpanContext propagation assumes
// parents exist before children do.
type Collector struct {
	tracer  oteltrace.Tracer
	tp      *sdktrace.TracerProvider
	verbose bool
}

// NewCollector wraps tp, the SDK TracerProvider built by NewCollectorFromConfig (or a
// bare sdktrace.NewTracerProvider() for verbose-logging-only use with no
// OTLP endpoint configured).
func NewCollector(tp *sdktrace.TracerProvider, verbose bool) *Collector {
	return &Collector{
		tp:      tp,
		tracer:  tp.Tracer("github.com/relaygate/relaygate/internal/agent"),
		verbose: verbose,
	}
}

// Verbose reports whether full message/output content should be captured
// in span previews rather than the default truncated summaries.
func (c *Collector) Verbose() bool { return c.verbose }

// EmitSpan records span as a closed OpenTelemetry span with its real,
// already-known start/end timestamps.
func (c *Collector) EmitSpan(span store.SpanData) {
	attrs := spanAttributes(span)
	_, otelSpan := c.tracer.Start(context.Background(), span.Name,
		oteltrace.WithTimestamp(span.StartTime),
		oteltrace.WithAttributes(attrs...),
	)
	if span.Status == store.SpanStatusError {
		otelSpan.SetStatus(codes.Error, span.Error)
	} else {
		otelSpan.SetStatus(codes.Ok, "")
	}
	end := span.StartTime.Add(time.Duration(span.DurationMS) * time.Millisecond)
	if span.EndTime != nil {
		end = *span.EndTime
	}
	otelSpan.End(oteltrace.WithTimestamp(end))
}

// Shutdown flushes buffered spans and stops the underlying exporter.
func (c *Collector) Shutdown(ctx context.Context) error {
	return c.tp.Shutdown(ctx)
}

func spanAttributes(span store.SpanData) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 16)
	attrs = append(attrs,
		attribute.String("relaygate.span_type", string(span.SpanType)),
		attribute.String("relaygate.status", string(span.Status)),
		attribute.String("relaygate.trace_id", span.TraceID.String()),
		attribute.String("relaygate.span_id", span.ID.String()),
	)
	if span.ParentSpanID != nil {
		attrs = append(attrs, attribute.String("relaygate.parent_span_id", span.ParentSpanID.String()))
	}
	if span.AgentID != nil {
		attrs = append(attrs, attribute.String("relaygate.agent_id", span.AgentID.String()))
	}
	if span.Model != "" {
		attrs = append(attrs, attribute.String("relaygate.model", span.Model))
	}
	if span.Provider != "" {
		attrs = append(attrs, attribute.String("relaygate.provider", span.Provider))
	}
	if span.ToolName != "" {
		attrs = append(attrs, attribute.String("relaygate.tool_name", span.ToolName))
	}
	if span.ToolCallID != "" {
		attrs = append(attrs, attribute.String("relaygate.tool_call_id", span.ToolCallID))
	}
	if span.FinishReason != "" {
		attrs = append(attrs, attribute.String("relaygate.finish_reason", span.FinishReason))
	}
	if span.InputTokens > 0 {
		attrs = append(attrs, attribute.Int("relaygate.input_tokens", span.InputTokens))
	}
	if span.OutputTokens > 0 {
		attrs = append(attrs, attribute.Int("relaygate.output_tokens", span.OutputTokens))
	}
	if span.InputPreview != "" {
		attrs = append(attrs, attribute.String("relaygate.input_preview", span.InputPreview))
	}
	if span.OutputPreview != "" {
		attrs = append(attrs, attribute.String("relaygate.output_preview", span.OutputPreview))
	}
	return attrs
}
