package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// SpanReadObject is the per-object storage span. A table with thousands of
// retained commits produces one per file, so it is only exported with
// verbose tracing.
const SpanReadObject = "deltascope.deltalog.read_object"

// NewFilteringTracerProvider wraps delegate so the named hot-path spans are
// never recorded. Without names it drops SpanReadObject. A dropped span
// leaves ctx untouched, so its children attach to the enclosing span.
func NewFilteringTracerProvider(delegate trace.TracerProvider, hot ...string) trace.TracerProvider {
	if len(hot) == 0 {
		hot = []string{SpanReadObject}
	}

	names := make(map[string]struct{}, len(hot))
	for _, name := range hot {
		names[name] = struct{}{}
	}

	return &hotSpanProvider{delegate: delegate, hot: names}
}

type hotSpanProvider struct {
	embedded.TracerProvider

	delegate trace.TracerProvider
	hot      map[string]struct{}
}

func (p *hotSpanProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &hotSpanTracer{Tracer: p.delegate.Tracer(name, opts...), hot: p.hot}
}

type hotSpanTracer struct {
	trace.Tracer

	hot map[string]struct{}
}

func (t *hotSpanTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if _, skip := t.hot[name]; skip {
		return ctx, nooptrace.Span{}
	}

	return t.Tracer.Start(ctx, name, opts...)
}
